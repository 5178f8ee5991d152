package http

import (
	"encoding/json"

	"github.com/chatspace/chatspace-server/internal/core"
	"github.com/chatspace/chatspace-server/internal/proto"
)

func inboundToEvent(inbound proto.Inbound) (*core.Inbound, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinPrivate:
		var data proto.PasswordData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundJoinPrivate, Password: data.Password}, nil, nil

	case proto.InboundTypeMakePublic:
		return &core.Inbound{Kind: core.InboundMakePublic}, nil, nil

	case proto.InboundTypeMakePrivate:
		var data proto.PasswordData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundMakePrivate, Password: data.Password}, nil, nil

	case proto.InboundTypeNickname:
		var data proto.NicknameData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundNickname, Nickname: data.Nickname}, nil, nil

	case proto.InboundTypeTopic:
		var data proto.TopicData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundTopic, Topic: data.Topic}, nil, nil

	case proto.InboundTypeHistoryRequest:
		var data proto.HistoryRequestData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if len(data.RequestRange) == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "requestRange is required"}, nil
		}
		return &core.Inbound{Kind: core.InboundHistoryRequest, RequestRange: data.RequestRange}, nil, nil

	case proto.InboundTypeIdle:
		return &core.Inbound{Kind: core.InboundIdle}, nil, nil

	case proto.InboundTypeUnidle:
		return &core.Inbound{Kind: core.InboundUnidle}, nil, nil

	case proto.InboundTypePrivateMessage:
		var data proto.PrivateMessageData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundPrivateMessage, Body: data.Body, DirectedAt: data.DirectedAt}, nil, nil

	case proto.InboundTypeChat:
		var data proto.ChatData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundChat, Body: data.Body}, nil, nil

	case proto.InboundTypeIdentify:
		var data proto.PasswordData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundIdentify, Password: data.Password}, nil, nil

	case proto.InboundTypeRegisterNick:
		var data proto.PasswordData
		if err := unmarshalData(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{Kind: core.InboundRegisterNick, Password: data.Password}, nil, nil

	case proto.InboundTypeUnsubscribe:
		return &core.Inbound{Kind: core.InboundUnsubscribe}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown event type"}, nil
	}
}

// unmarshalData tolerates an absent data field for events whose payload
// is entirely optional.
func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func wireMessage(msg *core.Message, you bool) *proto.WireMessage {
	return &proto.WireMessage{
		ID:         msg.ID,
		Room:       msg.Room,
		CID:        msg.CID,
		Nickname:   msg.Nickname,
		Color:      msg.Color,
		Body:       msg.Body,
		MsgType:    msg.Type,
		DirectedAt: msg.DirectedAt,
		Timestamp:  msg.Timestamp,
		You:        you,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventChat:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChat,
			Room:  event.Room,
			Data:  wireMessage(event.Message, event.You),
		}
	case core.EventTopic:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTopic,
			Room:  event.Room,
			Data:  wireMessage(event.Message, false),
		}
	case core.EventWatermark:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCurrentID,
			Room:  event.Room,
			Data:  proto.CurrentIDData{Room: event.Room, ID: event.ID},
		}
	case core.EventOwnCID:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventYourCID,
			Room:  event.Room,
			Data:  proto.YourCIDData{Room: event.Room, CID: event.CID},
		}
	case core.EventUserlist:
		users := make([]proto.User, 0, len(event.Users))
		for _, u := range event.Users {
			users = append(users, proto.User{
				CID:        u.CID,
				Nickname:   u.Nickname,
				Color:      u.Color,
				Identified: u.Identified,
				Idle:       u.Idle,
				IdleSince:  u.IdleSince,
			})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserlist,
			Room:  event.Room,
			Data:  proto.UserlistData{Room: event.Room, Users: users},
		}
	case core.EventIdle:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventIdle,
			Room:  event.Room,
			Data:  proto.IdleData{Room: event.Room, CID: event.CID},
		}
	case core.EventUnidle:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUnidle,
			Room:  event.Room,
			Data:  proto.IdleData{Room: event.Room, CID: event.CID},
		}
	case core.EventPrivateMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPrivateMessage,
			Room:  event.Room,
			Data:  wireMessage(event.Message, event.You),
		}
	case core.EventPrivateRequired:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPrivateRequired,
			Room:  event.Room,
		}
	case core.EventAck:
		return proto.Outbound{
			Type: proto.OutboundTypeAck,
			Room: event.Room,
			Data: proto.AckData{Event: event.Ack},
		}
	case core.EventError:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Room:  event.Room,
			Error: &proto.Error{Code: event.Err.Code, Msg: event.Err.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Room: event.Room}
	}
}
