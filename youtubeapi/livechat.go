package youtubeapi

import (
	"context"
	"fmt"
	"time"

	yt "google.golang.org/api/youtube/v3"
)

// LiveVideo describes an active broadcast found by a probe.
type LiveVideo struct {
	ID          string
	Title       string
	Description string
}

// ChatMessage is one live chat text message with its author details.
type ChatMessage struct {
	ID              string
	AuthorChannelID string
	AuthorName      string
	Text            string
	PublishedAt     time.Time
	IsOwner         bool
	IsModerator     bool
	IsVerified      bool
}

// MessagePage is the result of one liveChatMessages.list call.
type MessagePage struct {
	Messages          []ChatMessage
	NextPageToken     string
	SuggestedInterval time.Duration
}

// ProbeLiveVideo looks for an active broadcast on the configured channel.
// Returns nil without error when the channel is offline. Costs one search
// unit against the daily quota.
func (s *Service) ProbeLiveVideo(ctx context.Context) (*LiveVideo, error) {
	svc, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	res, err := svc.Search.List([]string{"snippet"}).
		ChannelId(s.cfg.YTChannelID).
		EventType("live").
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search live video: %w", err)
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	item := res.Items[0]
	if item.Id == nil || item.Id.VideoId == "" {
		return nil, nil
	}
	v := &LiveVideo{ID: item.Id.VideoId}
	if item.Snippet != nil {
		v.Title = item.Snippet.Title
		v.Description = item.Snippet.Description
	}
	return v, nil
}

// FetchChatID resolves the active live chat id for a video. Returns the
// empty string without error when chat is disabled or the video is gone.
// Costs one lookup unit.
func (s *Service) FetchChatID(ctx context.Context, videoID string) (string, error) {
	svc, err := s.Client(ctx)
	if err != nil {
		return "", err
	}
	res, err := svc.Videos.List([]string{"liveStreamingDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("lookup live chat id: %w", err)
	}
	if len(res.Items) == 0 || res.Items[0].LiveStreamingDetails == nil {
		return "", nil
	}
	return res.Items[0].LiveStreamingDetails.ActiveLiveChatId, nil
}

// FetchMessages retrieves the next page of live chat messages in server
// order. Only textMessageEvent items are returned; deletions, bans, and
// other event types are skipped. Costs one list unit.
func (s *Service) FetchMessages(ctx context.Context, chatID, pageToken string) (*MessagePage, error) {
	svc, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	call := svc.LiveChatMessages.List(chatID, []string{"snippet", "authorDetails"}).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	page := &MessagePage{
		NextPageToken:     res.NextPageToken,
		SuggestedInterval: time.Duration(res.PollingIntervalMillis) * time.Millisecond,
	}
	for _, item := range res.Items {
		if item.Snippet == nil || item.Snippet.Type != "textMessageEvent" {
			continue
		}
		msg := ChatMessage{ID: item.Id, Text: item.Snippet.DisplayMessage}
		if ts, perr := time.Parse(time.RFC3339, item.Snippet.PublishedAt); perr == nil {
			msg.PublishedAt = ts
		}
		if a := item.AuthorDetails; a != nil {
			msg.AuthorChannelID = a.ChannelId
			msg.AuthorName = a.DisplayName
			msg.IsOwner = a.IsChatOwner
			msg.IsModerator = a.IsChatModerator
			msg.IsVerified = a.IsVerified
		}
		page.Messages = append(page.Messages, msg)
	}
	return page, nil
}

// SendReply posts a text message to the live chat. Costs one insert unit.
func (s *Service) SendReply(ctx context.Context, chatID, text string) error {
	svc, err := s.Client(ctx)
	if err != nil {
		return err
	}
	msg := &yt.LiveChatMessage{
		Snippet: &yt.LiveChatMessageSnippet{
			LiveChatId:         chatID,
			Type:               "textMessageEvent",
			TextMessageDetails: &yt.LiveChatTextMessageDetails{MessageText: text},
		},
	}
	if _, err := svc.LiveChatMessages.Insert([]string{"snippet"}, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}
