package chat

import (
	"github.com/vovakirdan/wirechat-lite/internal/core"
	"github.com/vovakirdan/wirechat-lite/internal/proto"
)

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventAuthAccepted:
		return proto.Outbound{
			Type: proto.OutboundTypeAuthAccepted,
			Data: proto.AuthAccepted{Username: event.User, Token: event.Token},
		}
	case core.EventAuthRejected:
		if event.Error == nil {
			return proto.Outbound{
				Type: proto.OutboundTypeAuthRejected,
				Data: proto.AuthRejected{Reason: core.ErrCodeUnavailable, Message: "authentication failed"},
			}
		}
		return proto.Outbound{
			Type: proto.OutboundTypeAuthRejected,
			Data: proto.AuthRejected{Reason: event.Error.Code, Message: event.Error.Message},
		}
	case core.EventChat:
		return proto.Outbound{
			Type: proto.OutboundTypeChat,
			Data: proto.ChatMessage{
				Sender: event.Message.From,
				Text:   event.Message.Text,
				TS:     event.Message.CreatedAt.UnixMilli(),
			},
		}
	case core.EventRoster:
		users := event.Users
		if users == nil {
			users = []string{}
		}
		return proto.Outbound{
			Type: proto.OutboundTypeRoster,
			Data: proto.Roster{Users: users},
		}
	case core.EventNotice:
		return proto.Outbound{
			Type: proto.OutboundTypeNotice,
			Data: proto.Notice{Text: event.Text},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeNotice, Data: proto.Notice{Text: "unknown event"}}
	}
}
