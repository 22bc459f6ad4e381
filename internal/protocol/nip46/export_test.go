package nip46

const MaxCachedCiphers = maxCachedCiphers

func (l *Listener) CachedCiphers() int { return len(l.ciphers) }
