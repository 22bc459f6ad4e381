package domain

import (
	interfaces "nsyte/internal/domain/interfaces"
	types "nsyte/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	SecretKey        = types.SecretKey
	PublicKey        = types.PublicKey
	Session          = types.Session
	PendingHandshake = types.PendingHandshake
	Status           = types.Status
	Invitation       = types.Invitation
	Kind             = types.Kind
	Tag              = types.Tag
	Tags             = types.Tags
	Event            = types.Event
	EventTemplate    = types.EventTemplate
	Filter           = types.Filter
	PublishResult    = types.PublishResult
	RemoteError      = types.RemoteError
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	SessionStore       = interfaces.SessionStore
	HandshakeStore     = interfaces.HandshakeStore
	Transport          = interfaces.Transport
	Subscription       = interfaces.Subscription
	EventSigner        = interfaces.EventSigner
	SignerService      = interfaces.SignerService
	InvitationRenderer = interfaces.InvitationRenderer
)

const (
	KindNostrConnect = types.KindNostrConnect
	KindHTTPAuth     = types.KindHTTPAuth
)
