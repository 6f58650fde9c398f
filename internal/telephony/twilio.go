package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// Twilio error codes that indicate the destination itself is bad; retrying
// cannot succeed. https://www.twilio.com/docs/api/errors
var permanentTwilioCodes = map[int]bool{
	21211: true, // invalid 'To' phone number
	21610: true, // recipient has unsubscribed (carrier-level STOP)
	21614: true, // 'To' number is not a valid mobile number
}

// TwilioTransport implements MessageTransport and VoiceTransport against the
// Twilio REST API using form-encoded posts. No SDK dependency.
type TwilioTransport struct {
	accountSID string
	authToken  string
	baseURL    string

	httpClient *http.Client
}

func NewTwilioTransport(accountSID, authToken, baseURL string) *TwilioTransport {
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	return &TwilioTransport{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *TwilioTransport) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.To == "" || req.From == "" || req.Body == "" {
		return SendResult{}, &SendError{Permanent: true, Msg: "telephony: to, from and body are required"}
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Body", req.Body)
	for _, u := range req.MediaURLs {
		form.Add("MediaUrl", u)
	}

	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := t.post(ctx, "Messages.json", form, &out); err != nil {
		return SendResult{}, err
	}
	return SendResult{SID: out.SID, Status: out.Status}, nil
}

func (t *TwilioTransport) DialMany(ctx context.Context, req DialRequest) (DialResult, error) {
	if req.AttemptID == "" || len(req.Legs) == 0 {
		return DialResult{}, &SendError{Permanent: true, Msg: "telephony: attempt_id and at least one leg are required"}
	}

	res := DialResult{LegSIDs: make(map[string]string, len(req.Legs))}
	var firstErr error

	// One REST call per leg; Twilio rings them concurrently. A single failed
	// leg does not abort the others.
	for _, leg := range req.Legs {
		cb := legCallbackURL(req.StatusCallbackURL, req.AttemptID, leg.MemberID)

		form := url.Values{}
		form.Set("To", leg.Phone)
		form.Set("From", req.CallerID)
		form.Set("Url", cb)
		form.Set("StatusCallback", cb)
		form.Set("StatusCallbackEvent", "answered completed")
		form.Set("Timeout", strconv.Itoa(int(req.RingTimeout.Seconds())))

		var out struct {
			SID string `json:"sid"`
		}
		if err := t.post(ctx, "Calls.json", form, &out); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.LegSIDs[leg.MemberID] = out.SID
	}

	if len(res.LegSIDs) == 0 && firstErr != nil {
		return DialResult{}, firstErr
	}
	return res, nil
}

func legCallbackURL(base, attemptID, memberID string) string {
	v := url.Values{"attempt_id": {attemptID}}
	if memberID != "" {
		v.Set("member_id", memberID)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + v.Encode()
}

func (t *TwilioTransport) post(ctx context.Context, resource string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s", t.baseURL, t.accountSID, resource)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.SetBasicAuth(t.accountSID, t.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		// Network-level failures are transient.
		return &SendError{Msg: fmt.Sprintf("telephony: twilio request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &SendError{Msg: fmt.Sprintf("telephony: twilio response read failed: %v", err)}
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return &SendError{
			Code:      apiErr.Code,
			Permanent: permanentTwilioCodes[apiErr.Code],
			Msg:       fmt.Sprintf("telephony: twilio returned %d (code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message),
		}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &SendError{Msg: fmt.Sprintf("telephony: twilio response decode failed: %v", err)}
		}
	}
	return nil
}
