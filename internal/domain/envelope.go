package domain

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

type MessageType string

const (
	MessageOffer            MessageType = "offer"
	MessageAnswer           MessageType = "answer"
	MessageICECandidate     MessageType = "ice-candidate"
	MessageUserDisconnected MessageType = "user-disconnected"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageOffer, MessageAnswer, MessageICECandidate, MessageUserDisconnected:
		return true
	}
	return false
}

// Envelope is the signaling message exchanged through the relay.
// Field names match what browser peers put on the wire.
type Envelope struct {
	Type      MessageType                `json:"type"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Sender    Role                       `json:"sender,omitempty"`
}

func OfferEnvelope(sd webrtc.SessionDescription) Envelope {
	return Envelope{Type: MessageOffer, Offer: &sd}
}

func AnswerEnvelope(sd webrtc.SessionDescription) Envelope {
	return Envelope{Type: MessageAnswer, Answer: &sd}
}

func CandidateEnvelope(ci webrtc.ICECandidateInit) Envelope {
	return Envelope{Type: MessageICECandidate, Candidate: &ci}
}

func DisconnectedEnvelope(who Role) Envelope {
	return Envelope{Type: MessageUserDisconnected, Sender: who}
}

// DecodeEnvelope parses and checks that the variant carries its payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrSignaling, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Validate() error {
	switch e.Type {
	case MessageOffer:
		if e.Offer == nil {
			return fmt.Errorf("%w: offer without sdp", ErrSignaling)
		}
	case MessageAnswer:
		if e.Answer == nil {
			return fmt.Errorf("%w: answer without sdp", ErrSignaling)
		}
	case MessageICECandidate, MessageUserDisconnected:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrSignaling, e.Type)
	}
	return nil
}

// StampSender rewrites the raw envelope with the sender role, leaving every
// other field untouched. The relay uses it instead of a full decode.
func StampSender(raw []byte, sender Role) ([]byte, MessageType, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSignaling, err)
	}
	var typ MessageType
	if err := json.Unmarshal(fields["type"], &typ); err != nil || !typ.Valid() {
		return nil, "", fmt.Errorf("%w: bad type", ErrSignaling)
	}
	s, _ := json.Marshal(sender)
	fields["sender"] = s
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSignaling, err)
	}
	return out, typ, nil
}
