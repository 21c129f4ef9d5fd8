package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

type messagingFixture struct {
	svc       *MessagingService
	gateway   *mockGateway
	previewer *mockPreviewer
}

func newMessagingFixture(t *testing.T, configured bool) *messagingFixture {
	t.Helper()
	store := newMockIntegrationStore()
	if configured {
		store.gateways["co_1"] = model.GatewayConfig{CompanyID: "co_1", InstanceURL: "https://gw.example.com", Token: "enc:tok"}
	}
	f := &messagingFixture{
		gateway:   &mockGateway{},
		previewer: &mockPreviewer{preview: model.LinkPreview{Domain: "example.com", Title: "Example"}},
	}
	f.svc = NewMessagingService(f.gateway, NewCredentialService(store, &mockVault{}, testRetry), f.previewer)
	return f
}

func TestMessagingService_Operations(t *testing.T) {
	f := newMessagingFixture(t, true)
	ctx := context.Background()
	p := member("co_1")

	sent, err := f.svc.SendText(ctx, p, SendTextInput{Phone: "+55 11 99999-0000", Text: " olá "})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", sent.MessageID)

	_, err = f.svc.SendMedia(ctx, p, SendMediaInput{Phone: "5511999990000", Media: model.OutboundMedia{Type: "IMAGE", URL: "https://cdn.example.com/a.png"}})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetTyping(ctx, p, "", "5511999990000"))
	require.NoError(t, f.svc.React(ctx, p, MessageRef{Phone: "5511999990000", MessageID: "m1"}, "👍"))
	require.NoError(t, f.svc.Delete(ctx, p, MessageRef{Phone: "5511999990000", MessageID: "m1"}))

	calls := f.gateway.recorded()
	require.Len(t, calls, 5)
	ops := make([]string, 0, len(calls))
	for _, c := range calls {
		ops = append(ops, c.op)
		assert.Equal(t, "5511999990000", c.phone)
		assert.Equal(t, driven.GatewayCredentials{BaseURL: "https://gw.example.com", Token: "tok"}, c.creds)
	}
	assert.Equal(t, []string{"send_text", "send_media", "presence", "react", "delete"}, ops)
	assert.Equal(t, "olá", calls[0].payload)
	assert.Equal(t, "image https://cdn.example.com/a.png", calls[1].payload)
}

func TestMessagingService_NotConfigured(t *testing.T) {
	f := newMessagingFixture(t, false)

	_, err := f.svc.SendText(context.Background(), member("co_1"), SendTextInput{Phone: "5511999990000", Text: "hi"})
	assert.ErrorIs(t, err, driven.ErrNotFound)
	assert.Empty(t, f.gateway.recorded())
}

func TestMessagingService_GatewayErrorPassesThrough(t *testing.T) {
	f := newMessagingFixture(t, true)
	f.gateway.err = &driven.GatewayError{Op: "send_text", StatusCode: 500, Body: "boom"}

	_, err := f.svc.SendText(context.Background(), member("co_1"), SendTextInput{Phone: "5511999990000", Text: "hi"})
	var ge *driven.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 500, ge.StatusCode)
}

func TestMessagingService_Validation(t *testing.T) {
	f := newMessagingFixture(t, true)
	ctx := context.Background()
	p := member("co_1")

	tests := []struct {
		name      string
		call      func() error
		wantField string
	}{
		{name: "empty text", call: func() error {
			_, err := f.svc.SendText(ctx, p, SendTextInput{Phone: "5511999990000", Text: "  "})
			return err
		}, wantField: "text"},
		{name: "short phone", call: func() error {
			_, err := f.svc.SendText(ctx, p, SendTextInput{Phone: "12345", Text: "hi"})
			return err
		}, wantField: "phone"},
		{name: "letters in phone", call: func() error {
			_, err := f.svc.SendText(ctx, p, SendTextInput{Phone: "55119999abc00", Text: "hi"})
			return err
		}, wantField: "phone"},
		{name: "media type", call: func() error {
			_, err := f.svc.SendMedia(ctx, p, SendMediaInput{Phone: "5511999990000", Media: model.OutboundMedia{Type: "sticker", URL: "https://x.io/a"}})
			return err
		}, wantField: "type"},
		{name: "media url", call: func() error {
			_, err := f.svc.SendMedia(ctx, p, SendMediaInput{Phone: "5511999990000", Media: model.OutboundMedia{Type: "image", URL: "file:///etc/passwd"}})
			return err
		}, wantField: "url"},
		{name: "reaction message id", call: func() error {
			return f.svc.React(ctx, p, MessageRef{Phone: "5511999990000"}, "👍")
		}, wantField: "messageId"},
		{name: "reaction emoji", call: func() error {
			return f.svc.React(ctx, p, MessageRef{Phone: "5511999990000", MessageID: "m1"}, "")
		}, wantField: "emoji"},
		{name: "delete message id", call: func() error {
			return f.svc.Delete(ctx, p, MessageRef{Phone: "5511999990000"})
		}, wantField: "messageId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			require.ErrorAs(t, tt.call(), &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
	assert.Empty(t, f.gateway.recorded())
}

func TestMessagingService_LinkPreview(t *testing.T) {
	f := newMessagingFixture(t, false)
	ctx := context.Background()

	preview, err := f.svc.LinkPreview(ctx, member("co_1"), " https://example.com/post ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/post", preview.URL)
	assert.Equal(t, "Example", preview.Title)

	_, err = f.svc.LinkPreview(ctx, nil, "https://example.com")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	f.previewer.err = errors.New("unsupported scheme")
	_, err = f.svc.LinkPreview(ctx, member("co_1"), "ftp://example.com")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "url", ve.Field)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+55 (11) 99999-0000", want: "5511999990000"},
		{in: "11.9999.0000", want: "1199990000"},
		{in: "123456789", wantErr: true},
		{in: "1234567890123456", wantErr: true},
		{in: "5511999990000@s.whatsapp.net", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizePhone(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
