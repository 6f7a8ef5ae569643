package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/watchquest/watchquest/watchquest/quests"
)

const defaultAPIBase = "https://api.telegram.org"

// Oracle answers channel membership questions through the Bot API
// getChatMember method. Answers are three-valued: a network problem or a
// rate limit is "unverifiable", never "not subscribed".
type Oracle struct {
	client  *http.Client
	token   string
	baseURL string
	timeout time.Duration
}

func NewOracle(token string, timeout time.Duration) *Oracle {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Oracle{
		client:  &http.Client{Timeout: timeout},
		token:   token,
		baseURL: defaultAPIBase,
		timeout: timeout,
	}
}

type chatMemberResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		Status string `json:"status"`
	} `json:"result"`
}

func (o *Oracle) CheckMembership(ctx context.Context, userID int64, channel string) (quests.CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/getChatMember?%s", o.baseURL, o.token, url.Values{
		"chat_id": {channel},
		"user_id": {strconv.FormatInt(userID, 10)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return quests.CheckUnverifiable, fmt.Errorf("failed to build membership request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return quests.CheckUnverifiable, fmt.Errorf("membership check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return quests.CheckUnverifiable, nil
	}

	var body chatMemberResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return quests.CheckUnverifiable, nil
	}

	if !body.OK {
		// A 400 about an unknown participant is a definitive "no". Anything
		// else (bad token, bot kicked from channel) is indistinguishable
		// from an outage for the caller.
		desc := strings.ToLower(body.Description)
		if body.ErrorCode == 400 && (strings.Contains(desc, "not found") || strings.Contains(desc, "participant")) {
			return quests.CheckNotSubscribed, nil
		}
		return quests.CheckUnverifiable, nil
	}

	switch body.Result.Status {
	case "member", "administrator", "creator":
		return quests.CheckSubscribed, nil
	case "left", "kicked":
		return quests.CheckNotSubscribed, nil
	default:
		return quests.CheckUnverifiable, nil
	}
}
