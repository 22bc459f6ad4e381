package nip44

var PaddedLen = paddedLen

var EncryptWithNonce = encrypt
