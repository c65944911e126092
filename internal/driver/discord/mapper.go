package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"remark-bot/pkg/remark"
)

// mapMessage converts one Discord message into the neutral message payload.
// Attachments keep their CDN URLs; embeds stay opaque render inputs.
func mapMessage(message *discordgo.Message) *remark.Message {
	if message == nil {
		return nil
	}

	mapped := &remark.Message{
		ID:   message.ID,
		Text: message.Content,
	}
	if message.MessageReference != nil {
		mapped.ReplyToID = message.MessageReference.MessageID
	}
	for _, attachment := range message.Attachments {
		if attachment == nil {
			continue
		}
		mapped.Attachments = append(mapped.Attachments, remark.Attachment{
			ID:        attachment.ID,
			FileName:  attachment.Filename,
			MIMEType:  attachment.ContentType,
			SizeBytes: int64(attachment.Size),
			URL:       attachment.URL,
		})
	}
	for _, embed := range message.Embeds {
		if embed == nil {
			continue
		}
		mapped.Embeds = append(mapped.Embeds, remark.Embed{
			Type:        string(embed.Type),
			Title:       embed.Title,
			Description: embed.Description,
			URL:         embed.URL,
			Color:       embed.Color,
		})
	}

	return mapped
}

// mapActor converts one Discord user into the neutral actor payload.
func mapActor(user *discordgo.User) remark.Actor {
	if user == nil {
		return remark.Actor{}
	}

	displayName := user.GlobalName
	if displayName == "" {
		displayName = user.Username
	}

	return remark.Actor{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: displayName,
		AvatarURL:   user.AvatarURL(""),
		IsBot:       user.Bot,
	}
}

// mapChannel converts one Discord channel into the neutral conversation payload.
// A nil channel degrades to a bare text conversation carrying only the id.
func mapChannel(channelID string, channel *discordgo.Channel) remark.Conversation {
	conversation := remark.Conversation{
		ID:   channelID,
		Type: remark.ConversationTypeText,
	}
	if channel == nil {
		return conversation
	}

	conversation.Title = channel.Name
	switch {
	case channel.IsThread():
		conversation.Type = remark.ConversationTypeThread
		conversation.ParentID = channel.ParentID
	case channel.Type == discordgo.ChannelTypeDM || channel.Type == discordgo.ChannelTypeGroupDM:
		conversation.Type = remark.ConversationTypeDirect
	}

	return conversation
}

// createdEvent maps a gateway message-create payload to a neutral event.
func createdEvent(message *discordgo.Message, conversation remark.Conversation, now time.Time) *remark.Event {
	occurredAt := message.Timestamp
	if occurredAt.IsZero() {
		occurredAt = now
	}

	return &remark.Event{
		ID:           uuid.NewString(),
		Kind:         remark.EventKindMessageCreated,
		OccurredAt:   occurredAt.UTC(),
		Platform:     remark.PlatformDiscord,
		Conversation: conversation,
		Actor:        mapActor(message.Author),
		Message:      mapMessage(message),
	}
}

// editedEvent maps a gateway message-update payload to a neutral event carrying
// the prior body when the state cache still holds it.
func editedEvent(
	updated *discordgo.Message,
	before *discordgo.Message,
	conversation remark.Conversation,
	now time.Time,
) *remark.Event {
	occurredAt := now
	if updated.EditedTimestamp != nil && !updated.EditedTimestamp.IsZero() {
		occurredAt = *updated.EditedTimestamp
	}

	actor := mapActor(updated.Author)
	if actor.ID == "" && before != nil {
		actor = mapActor(before.Author)
	}

	return &remark.Event{
		ID:           uuid.NewString(),
		Kind:         remark.EventKindMessageEdited,
		OccurredAt:   occurredAt.UTC(),
		Platform:     remark.PlatformDiscord,
		Conversation: conversation,
		Actor:        actor,
		Mutation: &remark.Mutation{
			Type:            remark.MutationTypeEdit,
			TargetMessageID: updated.ID,
			Before:          mapMessage(before),
		},
	}
}

// deletedEvent maps a gateway message-delete payload to a neutral event. The
// gateway carries only the id; the prior body comes from the state cache and
// may be absent.
func deletedEvent(
	messageID string,
	before *discordgo.Message,
	conversation remark.Conversation,
	now time.Time,
) *remark.Event {
	var actor remark.Actor
	if before != nil {
		actor = mapActor(before.Author)
	}

	return &remark.Event{
		ID:           uuid.NewString(),
		Kind:         remark.EventKindMessageDeleted,
		OccurredAt:   now.UTC(),
		Platform:     remark.PlatformDiscord,
		Conversation: conversation,
		Actor:        actor,
		Mutation: &remark.Mutation{
			Type:            remark.MutationTypeDelete,
			TargetMessageID: messageID,
			Before:          mapMessage(before),
		},
	}
}
