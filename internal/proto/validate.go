package proto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrUnknownType is returned for frames whose type is not part of the protocol.
var ErrUnknownType = errors.New("unknown message type")

type joinFrame struct {
	SessionID string `validate:"required,max=256"`
	Username  string `validate:"required,max=128"`
	Role      string `validate:"required,oneof=admin engineer user"`
	UserID    *int64 `validate:"omitempty,gt=0"`
}

type leaveFrame struct {
	SessionID string `validate:"required,max=256"`
}

type chatFrame struct {
	SessionID   string `validate:"required,max=256"`
	Content     string `validate:"required"`
	MessageType string `validate:"omitempty,oneof=individual broadcast system"`
	RecipientID *int64 `validate:"omitempty,gt=0"`
}

type listenerFrame struct {
	Username string `validate:"required,max=128"`
	Role     string `validate:"required,oneof=admin engineer user"`
	UserID   *int64 `validate:"omitempty,gt=0"`
}

// Validate checks that the fields required by the frame type are present and
// well formed. It does not check permissions.
func Validate(in Inbound) error {
	var err error
	switch in.Type {
	case InboundTypeJoin:
		err = validate.Struct(joinFrame{SessionID: in.SessionID, Username: strings.TrimSpace(in.Username), Role: in.Role, UserID: in.UserID})
	case InboundTypeLeave:
		err = validate.Struct(leaveFrame{SessionID: in.SessionID})
	case InboundTypeMessage:
		err = validate.Struct(chatFrame{SessionID: in.SessionID, Content: strings.TrimSpace(in.Content), MessageType: in.MessageType, RecipientID: in.RecipientID})
	case InboundTypeListener:
		err = validate.Struct(listenerFrame{Username: strings.TrimSpace(in.Username), Role: in.Role, UserID: in.UserID})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	return describe(err)
}

// describe turns validator output into a short reason naming the wire field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := wireName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Errorf("%s is too long", field)
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

func wireName(field string) string {
	switch field {
	case "SessionID":
		return "sessionId"
	case "UserID":
		return "userId"
	case "RecipientID":
		return "recipientId"
	case "MessageType":
		return "messageType"
	default:
		return strings.ToLower(field[:1]) + field[1:]
	}
}
