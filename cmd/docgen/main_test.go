package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotated = `package api

// @Title: Get History
// @Route: GET /api/history?limit=
// @Description: Returns recent transactions
// @Response: {"transactions": []}
func (s *Service) HandleHistory() {}

// @Title: Orphan
// @Response: dropped, no route
func (s *Service) Orphan() {}

// @Title: Paint Pixel
// @Route: POST /api/pixels/paint
// @Description: Paints a pixel
// @Response: 202 Accepted
func (s *Service) HandlePaint() {}
`

func TestParseEndpoints(t *testing.T) {
	eps, err := parseEndpoints(strings.NewReader(annotated))
	require.NoError(t, err)
	require.Len(t, eps, 2)

	assert.Equal(t, "GET", eps[0].Method())
	assert.Equal(t, "/api/history", eps[0].Path())
	assert.Equal(t, []string{"limit"}, eps[0].Params())
	assert.Equal(t, "sky", eps[0].Color())

	assert.Equal(t, "Paint Pixel", eps[1].Title)
	assert.Equal(t, "/api/pixels/paint", eps[1].Path())
	assert.Nil(t, eps[1].Params())
	assert.Equal(t, "emerald", eps[1].Color())
}

func TestRenderEscapes(t *testing.T) {
	var buf bytes.Buffer
	err := render(&buf, []Endpoint{{
		Title:       "Join",
		Route:       "POST /api/team/join",
		Description: `Stakes {"team": "red"}`,
		Response:    "<202>",
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `data-path="/api/team/join"`)
	assert.Contains(t, out, "&lt;202&gt;")
	assert.NotContains(t, out, "{{")
}

func TestCollectReadsRepoHandlers(t *testing.T) {
	eps, err := collect("../../internal/api")
	require.NoError(t, err)

	routes := make(map[string]bool)
	for _, ep := range eps {
		routes[ep.Route] = true
	}
	assert.True(t, routes["POST /api/pixels/paint"])
	assert.True(t, routes["GET /api/health"])
}
