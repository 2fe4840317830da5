package core

import "github.com/streamlink/chatcore/internal/store"

// Classification is the routing decision for one inbound chat message.
// Recipient is set only for individual messages that named one.
type Classification struct {
	Kind      store.MessageKind
	Recipient *int64
}

// ClassifyMessageKind centralizes the sender-role policy:
//
//   - privileged sender asking for broadcast: broadcast
//   - explicit recipient: individual to that recipient
//   - guest: broadcast
//   - privileged sender: broadcast
//   - ordinary user: individual without recipient
//
// System is reserved for server notices and is rejected when requested.
//
// The ordinary-user default is pending product confirmation. Recipient
// resolution falls back to session-wide delivery, so it is currently permissive.
func ClassifyMessageKind(sender Identity, requested store.MessageKind, recipient *int64) (Classification, error) {
	switch requested {
	case "", store.MessageKindIndividual, store.MessageKindBroadcast:
	default:
		return Classification{}, ErrUnsupportedKind
	}

	switch sender.(type) {
	case Authenticated, Guest:
	default:
		return Classification{}, ErrUnknownSender
	}

	privileged := RoleOf(sender).Privileged()

	if privileged && requested == store.MessageKindBroadcast {
		return Classification{Kind: store.MessageKindBroadcast}, nil
	}
	if recipient != nil {
		r := *recipient
		return Classification{Kind: store.MessageKindIndividual, Recipient: &r}, nil
	}

	if _, guest := sender.(Guest); guest || privileged {
		return Classification{Kind: store.MessageKindBroadcast}, nil
	}
	return Classification{Kind: store.MessageKindIndividual}, nil
}
