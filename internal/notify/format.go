package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// DefaultMaxItems bounds how many items a single message carries.
const DefaultMaxItems = 100

const sourceAttribution = "官公需情報ポータルサイト"
const sourceURL = "https://www.kkj.go.jp/s/"

// Message is the channel-independent payload of one notification.
type Message struct {
	SearchName string
	Items      []models.Item
	MaxItems   int
}

func (m Message) maxItems() int {
	if m.MaxItems > 0 {
		return m.MaxItems
	}
	return DefaultMaxItems
}

// visible returns the items that fit the message plus the overflow
// count left for the next run.
func (m Message) visible() ([]models.Item, int) {
	limit := m.maxItems()
	if len(m.Items) <= limit {
		return m.Items, 0
	}
	return m.Items[:limit], len(m.Items) - limit
}

func itemDateLine(item models.Item) string {
	switch {
	case item.DeadlineAt != nil:
		return "締切: " + item.DeadlineAt.Format("2006-01-02")
	case item.PublishedAt != nil:
		return "公開日: " + item.PublishedAt.Format("2006-01-02")
	default:
		return ""
	}
}

// slackBlock is one Block Kit element. Only the field subset the
// webhook payload needs is modeled.
type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

func formatItemSlack(item models.Item) slackBlock {
	text := fmt.Sprintf("*%s*\n%s", item.Title, item.OrganizationName)
	if date := itemDateLine(item); date != "" {
		text += " / " + date
	}
	if item.URL != nil && *item.URL != "" {
		text += fmt.Sprintf("\n<%s|詳細を見る>", *item.URL)
	}
	return slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: text},
	}
}

// formatSlack renders the full Block Kit payload for a message.
func formatSlack(m Message) slackPayload {
	items, overflow := m.visible()

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🔔 入札情報アラート: " + m.SearchName},
		},
		{
			Type: "context",
			Elements: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("新着 %d 件の案件があります", len(m.Items))},
			},
		},
		{Type: "divider"},
	}

	for _, item := range items {
		blocks = append(blocks, formatItemSlack(item), slackBlock{Type: "divider"})
	}

	if overflow > 0 {
		blocks = append(blocks, slackBlock{
			Type: "context",
			Elements: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("他 %d 件は次回通知されます", overflow)},
			},
		})
	}

	blocks = append(blocks, slackBlock{
		Type: "context",
		Elements: []slackText{
			{Type: "mrkdwn", Text: fmt.Sprintf("出典: <%s|%s>", sourceURL, sourceAttribution)},
		},
	})

	return slackPayload{Blocks: blocks}
}

// formatEmail renders a message as a plain-text email subject and body.
func formatEmail(m Message) (subject, body string) {
	items, overflow := m.visible()

	subject = fmt.Sprintf("[入札情報アラート] %s: %d件の新着", m.SearchName, len(m.Items))

	divider := strings.Repeat("=", 50)
	lines := []string{
		"入札情報アラート: " + m.SearchName,
		fmt.Sprintf("新着 %d 件の案件があります", len(m.Items)),
		"",
		divider,
		"",
	}

	for i, item := range items {
		lines = append(lines,
			fmt.Sprintf("[%d] %s", i+1, item.Title),
			"    機関: "+item.OrganizationName,
		)
		if date := itemDateLine(item); date != "" {
			lines = append(lines, "    "+date)
		}
		if item.URL != nil && *item.URL != "" {
			lines = append(lines, "    URL: "+*item.URL)
		}
		lines = append(lines, "")
	}

	if overflow > 0 {
		lines = append(lines, fmt.Sprintf("※ 他 %d 件は次回通知されます", overflow), "")
	}

	lines = append(lines, divider, "", "出典: "+sourceAttribution, sourceURL)

	return subject, strings.Join(lines, "\n")
}

// TestMessage builds a one-item message for delivery checks.
func TestMessage() Message {
	now := time.Now().UTC()
	url := sourceURL
	return Message{
		SearchName: "テスト通知",
		Items: []models.Item{
			{
				Source:           "test",
				Title:            "【テスト】入札情報アラートのテスト通知",
				OrganizationName: "テスト機関",
				PublishedAt:      &now,
				URL:              &url,
				ContentHash:      "test",
			},
		},
	}
}
