package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/service"
)

type fakeMessageAPI struct {
	getErr  error
	editErr error
	sent    []*discordgo.MessageSend
	edits   []*discordgo.MessageEdit
}

func (f *fakeMessageAPI) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeMessageAPI) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeMessageAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: "m-new", ChannelID: channelID}, nil
}

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "error"},
	}
}

func TestSurfaceClassifiesGoneErrors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		err       error
		gone      bool
		transient bool
	}{
		{restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMessage), true, false},
		{restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel), true, false},
		{restErr(http.StatusForbidden, discordgo.ErrCodeMissingAccess), false, true},
		{restErr(http.StatusNotFound, discordgo.ErrCodeMissingAccess), false, true},
		{restErr(http.StatusForbidden, 0), false, true},
		{restErr(http.StatusTooManyRequests, 0), false, false},
		{errors.New("connection reset"), false, false},
	}
	for _, c := range cases {
		s := NewSurface(&fakeMessageAPI{getErr: c.err})
		err := s.Resolve(ctx, "c1", "m1")
		require.Error(t, err)
		assert.Equal(t, c.gone, errors.Is(err, service.ErrSurfaceGone), "err=%v", c.err)
		assert.Equal(t, c.transient, errors.Is(err, apperr.ErrTransient), "err=%v", c.err)
	}

	require.NoError(t, NewSurface(&fakeMessageAPI{}).Resolve(ctx, "c1", "m1"))
}

func TestSurfacePushAndPost(t *testing.T) {
	api := &fakeMessageAPI{}
	s := NewSurface(api)
	ctx := context.Background()
	doc := dto.DisplayDocument{Title: "Resource Progress", Description: "0%"}

	require.NoError(t, s.Push(ctx, "c1", "m1", doc))
	require.Len(t, api.edits, 1)
	assert.Equal(t, "m1", api.edits[0].ID)
	require.NotNil(t, api.edits[0].Embeds)
	assert.Equal(t, "Resource Progress", (*api.edits[0].Embeds)[0].Title)

	id, err := s.Post(ctx, "c1", doc)
	require.NoError(t, err)
	assert.Equal(t, "m-new", id)
	require.Len(t, api.sent, 1)
	row, ok := api.sent[0].Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	btn, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, RefreshButtonID, btn.CustomID)

	api.editErr = restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMessage)
	assert.ErrorIs(t, s.Push(ctx, "c1", "m1", doc), service.ErrSurfaceGone)
}

func TestNewRESTSurface(t *testing.T) {
	_, err := NewRESTSurface("")
	require.Error(t, err)

	s, err := NewRESTSurface("abc")
	require.NoError(t, err)
	require.NotNil(t, s)
}
