package backoffice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ListPartners fetches all non-deleted partners.
func (c *Client) ListPartners(ctx context.Context, token string) ([]Partner, error) {
	var partners []Partner
	err := c.call(ctx, token, "Partner/Get", map[string]any{"deleted_mark": false}, &partners)
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// GetPartner fetches a single partner by id. Returns nil when the
// partner does not exist.
func (c *Client) GetPartner(ctx context.Context, token string, id int64) (*Partner, error) {
	var partners []Partner
	if err := c.call(ctx, token, "Partner/Get", map[string]any{"id": id}, &partners); err != nil {
		return nil, err
	}
	if len(partners) == 0 {
		return nil, nil
	}
	return &partners[0], nil
}

// FindPartnerByPhone looks for a partner whose stored phones match the
// given number, comparing normalized forms in both directions so that
// partial formats still match.
func (c *Client) FindPartnerByPhone(ctx context.Context, token, phone string) (*Partner, error) {
	partners, err := c.ListPartners(ctx, token)
	if err != nil {
		return nil, err
	}
	want := NormalizePhone(phone)
	if want == "" {
		return nil, nil
	}
	for i := range partners {
		have := NormalizePhone(partners[i].Phones)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return &partners[i], nil
		}
	}
	return nil, nil
}

// FindPartnerByChat looks for the partner whose oked field stores the
// given chat id.
func (c *Client) FindPartnerByChat(ctx context.Context, token string, chatID int64) (*Partner, error) {
	partners, err := c.ListPartners(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range partners {
		if id, ok := partners[i].ChatID(); ok && id == chatID {
			return &partners[i], nil
		}
	}
	return nil, nil
}

// LinkPartnerChat stores the chat id in the partner's oked field.
func (c *Client) LinkPartnerChat(ctx context.Context, token string, partnerID, chatID int64, lang string) error {
	payload := map[string]any{
		"id":   partnerID,
		"oked": fmt.Sprintf("%d", chatID),
		"rs":   lang,
	}
	if err := c.call(ctx, token, "Partner/Edit", payload, nil); err != nil {
		return err
	}
	c.log.Info("partner linked to chat",
		slog.Int64("partner_id", partnerID),
		slog.Int64("chat_id", chatID))
	return nil
}

// NewPartner is the input for self-registration of a new partner.
type NewPartner struct {
	GroupID  int64
	Name     string
	FullName string
	Phones   string
	ChatID   int64
	Language string
}

// RegisterPartner creates a partner record with the chat id already
// linked and returns the new partner id.
func (c *Client) RegisterPartner(ctx context.Context, token string, p NewPartner) (int64, error) {
	payload := map[string]any{
		"group_id":     p.GroupID,
		"legal_status": "Legal",
		"name":         p.Name,
		"fullName":     p.FullName,
		"phones":       p.Phones,
		"oked":         fmt.Sprintf("%d", p.ChatID),
		"rs":           p.Language,
	}
	var result struct {
		NewID int64 `json:"new_id"`
	}
	if err := c.call(ctx, token, "Partner/Add", payload, &result); err != nil {
		return 0, err
	}
	if result.NewID == 0 {
		return 0, fmt.Errorf("%w: Partner/Add: response missing new_id", ErrRejected)
	}
	c.log.Info("partner registered",
		slog.Int64("partner_id", result.NewID),
		slog.Int64("chat_id", p.ChatID))
	return result.NewID, nil
}
