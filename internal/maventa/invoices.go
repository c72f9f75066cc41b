package maventa

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rezonia/finvoice-bridge/internal/lifecycle"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

// Return formats accepted by the invoice endpoint
const (
	FormatFinvoice30      = "FINVOICE30"
	FormatExtendedDetails = "EXTENDED_DETAILS"
	FormatImage           = "ORIGINAL_OR_GENERATED_IMAGE"
)

var (
	_ lifecycle.Transmitter = (*Client)(nil)
	_ lifecycle.Inbox       = (*Client)(nil)
)

// Upload sends an archive as multipart field "file" and returns the network invoice id
func (c *Client) Upload(ctx context.Context, filename, contentType string, archive []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(archive); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/invoices"), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", model.NewUploadError("request failed", err)
	}

	id := gjson.GetBytes(resp, "id")
	if id.Type != gjson.String || id.String() == "" {
		return "", model.NewUploadError("response carries no invoice id", nil)
	}
	return id.String(), nil
}

// PollStatus returns the action feed of an uploaded invoice
func (c *Client) PollStatus(ctx context.Context, id string) ([]lifecycle.StatusEvent, error) {
	body, err := c.get(ctx, "/v1/invoices/"+url.PathEscape(id)+"/actions")
	if err != nil {
		return nil, err
	}
	if apiErr := errorObject(body); apiErr != nil {
		return nil, apiErr
	}

	var events []lifecycle.StatusEvent
	gjson.ParseBytes(body).ForEach(func(_, action gjson.Result) bool {
		ev := lifecycle.StatusEvent{Type: action.Get("type").String()}
		if msg := action.Get("message"); msg.Exists() && msg.Type != gjson.Null {
			s := msg.String()
			ev.Message = &s
		}
		events = append(events, ev)
		return true
	})
	return events, nil
}

// ListReceived lists invoices received on or after the day of since
func (c *Client) ListReceived(ctx context.Context, since time.Time) ([]lifecycle.ReceivedRef, error) {
	q := url.Values{
		"direction":         {"RECEIVED"},
		"received_at_start": {since.Format("02.01.2006")},
	}
	body, err := c.get(ctx, "/v1/invoices?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if apiErr := errorObject(body); apiErr != nil {
		return nil, apiErr
	}

	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, nil
	}

	var refs []lifecycle.ReceivedRef
	for i, inv := range res.Array() {
		id := inv.Get("id")
		if id.Type != gjson.String {
			c.log.Error().Int("index", i).Msg("received invoice without id")
			continue
		}
		refs = append(refs, lifecycle.ReceivedRef{
			ID:     id.String(),
			Number: inv.Get("number").String(),
			Sender: inv.Get("sender.name").String(),
		})
	}
	return refs, nil
}

func (c *Client) invoice(ctx context.Context, id, format string) ([]byte, error) {
	body, err := c.get(ctx, "/v1/invoices/"+url.PathEscape(id)+"?return_format="+format)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("maventa: empty %s response for %s", format, id)
	}
	return body, nil
}

// FetchXML downloads the invoice as Finvoice 3.0
func (c *Client) FetchXML(ctx context.Context, ref lifecycle.ReceivedRef) ([]byte, error) {
	return c.invoice(ctx, ref.ID, FormatFinvoice30)
}

// FetchAttachmentList reads the file list from the extended details
func (c *Client) FetchAttachmentList(ctx context.Context, ref lifecycle.ReceivedRef) ([]lifecycle.AttachmentRef, error) {
	body, err := c.invoice(ctx, ref.ID, FormatExtendedDetails)
	if err != nil {
		return nil, err
	}

	var files []lifecycle.AttachmentRef
	gjson.GetBytes(body, "files").ForEach(func(_, f gjson.Result) bool {
		id, name, mime, href := f.Get("id"), f.Get("filename"), f.Get("mimetype"), f.Get("href")
		if id.Type != gjson.String || name.Type != gjson.String || mime.Type != gjson.String || href.Type != gjson.String {
			c.log.Warn().Str("invoice", ref.ID).Msg("invalid file object in extended details")
			return true
		}
		files = append(files, lifecycle.AttachmentRef{
			ID:       id.String(),
			Name:     name.String(),
			MimeType: mime.String(),
			Href:     href.String(),
		})
		return true
	})
	return files, nil
}

// FetchAttachment downloads a file by its href
func (c *Client) FetchAttachment(ctx context.Context, href string) ([]byte, error) {
	return c.get(ctx, href)
}

// FetchRenderedImage downloads the original or generated invoice image
func (c *Client) FetchRenderedImage(ctx context.Context, ref lifecycle.ReceivedRef) ([]byte, error) {
	return c.invoice(ctx, ref.ID, FormatImage)
}
