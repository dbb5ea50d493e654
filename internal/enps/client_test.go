package enps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearstlab/storyshare/internal/config"
	"github.com/hearstlab/storyshare/internal/stations"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.EnpsConfig{
		BaseURL:     srv.URL,
		DevKey:      "dev",
		StaffUserID: "staff",
		DomainUser:  "domain",
		Password:    "secret",
		ClientType:  "WEB",
	}, zerolog.Nop())
}

func TestLogin_Success(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Logon", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "staff", r.PostForm.Get("staffUserId"))
		assert.Equal(t, "dev", r.PostForm.Get("devKey"))
		_ = json.NewEncoder(w).Encode(map[string]string{"SessionID": "session-123"})
	}))

	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, "session-123", c.sessionID)
}

func TestLogin_AuthFailure(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := c.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestLogin_EmptySession(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))

	var authErr *AuthError
	assert.ErrorAs(t, c.Login(context.Background()), &authErr)
}

func testStation(serverAddress string) stations.Station {
	return stations.Station{
		ServerAddress: serverAddress,
		Database:      "WESH-ENPS",
		Basepath:      `P_SYSTEM\WESH\`,
	}
}

func searchResponse(props []map[string]any) map[string]any {
	return map[string]any{
		"SearchResults": []map[string]any{
			{"ObjectProperties": props},
		},
	}
}

func TestSearch_StoryPackage(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Search", r.URL.Path)
		assert.Equal(t, "", r.Header.Get("X-ENPS-TOKEN")) // no login in this test

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "http://wesh.example.org/proxy/Storm-PKG.mp4", body["QueryTerms"])
		assert.Equal(t, "WESH-ENPS", body["Database"])
		locations, ok := body["NOMLocations"].([]any)
		require.True(t, ok)
		require.Len(t, locations, 1)
		assert.Equal(t, `P_SYSTEM\WESH\`, locations[0].(map[string]any)["BasePath"])

		_ = json.NewEncoder(w).Encode(searchResponse([]map[string]any{
			{"FieldName": "Guid", "FieldValue": "3DB9E7E8-04FD-499C-93D2-4FC7D7E3565C"},
			{"FieldName": "Type", "FieldValue": "3"},
			{"FieldName": "ModTime", "FieldValue": "9/18/2023 10:47:56 AM"},
			{"FieldName": "Path", "FieldValue": `P_SYSTEM\WESH\Storm`},
			{"FieldName": "Title", "FieldValue": "Storm-PKG"},
		}))
	}))

	result, err := c.Search(context.Background(), "Storm-PKG.mp4", testStation("http://wesh.example.org/proxy/"))
	require.NoError(t, err)

	assert.True(t, result.IsStoryAndPackage)
	assert.Equal(t, "3DB9E7E8-04FD-499C-93D2-4FC7D7E3565C", result.GUID)
	assert.Equal(t, "Storm", result.Slug)
	assert.Equal(t, `P_SYSTEM\WESH\Storm`, result.Path)
	assert.Equal(t, time.Date(2023, 9, 18, 10, 47, 56, 0, time.UTC), result.ModTime)
}

func TestSearch_NotAPackage(t *testing.T) {
	tests := []struct {
		name  string
		props []map[string]any
	}{
		{
			name: "wrong type",
			props: []map[string]any{
				{"FieldName": "Type", "FieldValue": "2"},
				{"FieldName": "Title", "FieldValue": "Storm-PKG"},
			},
		},
		{
			name: "wrong suffix",
			props: []map[string]any{
				{"FieldName": "Type", "FieldValue": "3"},
				{"FieldName": "Title", "FieldValue": "Storm-VO"},
			},
		},
		{
			name: "no suffix",
			props: []map[string]any{
				{"FieldName": "Type", "FieldValue": "3"},
				{"FieldName": "Title", "FieldValue": "Storm"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := tt.props
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(searchResponse(props))
			}))

			result, err := c.Search(context.Background(), "x.mp4", testStation("http://s/"))
			require.NoError(t, err)
			assert.False(t, result.IsStoryAndPackage)
		})
	}
}

func TestSearch_NoResults(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"SearchResults": []any{}})
	}))

	result, err := c.Search(context.Background(), "x.mp4", testStation("http://s/"))
	require.NoError(t, err)
	assert.False(t, result.IsStoryAndPackage)
	assert.Empty(t, result.GUID)
}

func TestSearch_ServerError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Search(context.Background(), "x.mp4", testStation("http://s/"))
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
}

func TestGetBasicContent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/BasicContent", r.URL.Path)

		var body []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "guid-1", body[0]["guid"])

		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"ObjectProperties": []map[string]any{
				{"FieldName": "Text", "FieldValue": "Severe storms moved through the area."},
				{"FieldName": "TextCommands", "FieldValue": "[<mos><itemID>2</itemID></mos>]"},
				{"FieldName": "Creator", "FieldValue": "drobinson"},
				{"FieldName": "ModTime", "FieldValue": "9/18/2023 10:47:56 AM"},
				{"FieldName": "HearstShare", "FieldValue": true},
			},
		}})
	}))

	content, err := c.GetBasicContent(context.Background(), `P_SYSTEM\WESH\Storm`, "guid-1")
	require.NoError(t, err)

	assert.Equal(t, "Severe storms moved through the area.", content.OverviewText)
	assert.Equal(t, "[<mos><itemID>2</itemID></mos>]", content.MediaObject)
	assert.Equal(t, "drobinson", content.Creator)
	assert.Equal(t, "9/18/2023 10:47:56 AM", content.RawModTime)
	assert.True(t, content.HearstShare)
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		title  string
		slug   string
		suffix string
	}{
		{"Storm-PKG", "Storm", "PKG"},
		{"UAW Strike-PKG", "UAW Strike", "PKG"},
		{"Hurricane-Update-PKG", "Hurricane-Update", "PKG"},
		{"Storm-VO", "Storm", "VO"},
		{"Storm", "Storm", ""},
	}

	for _, tt := range tests {
		slug, suffix := splitTitle(tt.title)
		assert.Equal(t, tt.slug, slug, tt.title)
		assert.Equal(t, tt.suffix, suffix, tt.title)
	}
}

func TestRawBool(t *testing.T) {
	assert.True(t, rawBool(json.RawMessage(`true`)))
	assert.True(t, rawBool(json.RawMessage(`"TRUE"`)))
	assert.True(t, rawBool(json.RawMessage(`"1"`)))
	assert.False(t, rawBool(json.RawMessage(`false`)))
	assert.False(t, rawBool(json.RawMessage(`"no"`)))
}
