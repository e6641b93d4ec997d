// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cnotch/avbhub/avdecc"
	"github.com/cnotch/avbhub/network/rawsock"
	"github.com/cnotch/avbhub/provider/auth"
	"github.com/cnotch/avbhub/provider/streams"
	"github.com/cnotch/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var localMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

func newTestService(t *testing.T) *Service {
	require.NoError(t, streams.Reset(streams.Memory))
	require.NoError(t, auth.Reset(auth.Memory))
	require.NoError(t, streams.Save(&streams.Stream{Name: "mic", Direction: streams.Talker,
		UniqueID: 1, DestMAC: "91:e0:f0:00:fe:01", BitDepth: 16, Source: "rtp:127.0.0.1:0"}))
	require.NoError(t, streams.Save(&streams.Stream{Name: "spk", Direction: streams.Listener,
		UniqueID: 2, DestMAC: "91:e0:f0:00:fe:02", BitDepth: 16, Sink: "rtp:127.0.0.1:5004"}))

	hub := rawsock.NewHub()
	open := func(ifname string, ethertype uint16) (rawsock.Socket, error) {
		return hub.Open(localMAC, ethertype), nil
	}
	s, err := NewService(context.Background(), xlog.L(), avdecc.WithOpener(open))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func do(s *Service, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestServerApis(t *testing.T) {
	s := newTestService(t)

	w := do(s, http.MethodGet, "/api/v1/server", "")
	require.Equal(t, http.StatusOK, w.Code)
	srv := decode(t, w)
	assert.Equal(t, "avbhub", srv["name"])
	assert.Equal(t, localMAC.String(), srv["mac"])
	assert.Equal(t, "eth0", srv["interface"])

	w = do(s, http.MethodGet, "/api/v1/runtime?extra=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	rt := decode(t, w)
	counts := rt["streams"].(map[string]interface{})
	assert.Equal(t, float64(1), counts["talkers"])
	assert.Equal(t, float64(1), counts["listeners"])
	assert.NotNil(t, rt["extra"])

	w = do(s, http.MethodGet, "/api/v1/entity", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, localMAC.String(), decode(t, w)["mac"])

	w = do(s, http.MethodGet, "/api/v1/entities", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])
	w = do(s, http.MethodGet, "/api/v1/entities/bad-id", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(s, http.MethodGet, "/api/v1/entities/00:11:22:33:44:55:66:77", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDescriptorApis(t *testing.T) {
	s := newTestService(t)

	w := do(s, http.MethodGet, "/api/v1/descriptors/0/STREAM_INPUT/0", "")
	require.Equal(t, http.StatusOK, w.Code)
	d := decode(t, w)
	assert.Equal(t, "STREAM_INPUT", d["type"])
	assert.NotEmpty(t, d["raw"])
	// 线上编码以 descriptor_type 开头
	assert.True(t, strings.HasPrefix(d["raw"].(string), "0005"), d["raw"])

	w = do(s, http.MethodGet, "/api/v1/descriptors/0/audio_cluster", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 4)

	w = do(s, http.MethodGet, "/api/v1/descriptors/0/STREAM_INPUT/9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(s, http.MethodGet, "/api/v1/descriptors/x/STREAM_INPUT/0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(s, http.MethodGet, "/api/v1/descriptors/0/NO_SUCH_TYPE/0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamApis(t *testing.T) {
	s := newTestService(t)

	w := do(s, http.MethodGet, "/api/v1/streams?page_size=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.Equal(t, float64(2), list["total"])
	assert.Equal(t, "mic", list["next_page_token"])
	assert.Len(t, list["streams"], 1)

	w = do(s, http.MethodGet, "/api/v1/streams?page_token=mic", "")
	list = decode(t, w)
	assert.Equal(t, "spk", list["next_page_token"])

	w = do(s, http.MethodGet, "/api/v1/streams/spk", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "spk", decode(t, w)["name"])
	w = do(s, http.MethodGet, "/api/v1/streams/none", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, http.MethodPost, "/api/v1/streams/spk:pause", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.avdecc.Pipeline().Get("spk").State().Paused)
	w = do(s, http.MethodPost, "/api/v1/streams/spk:resume", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.avdecc.Pipeline().Get("spk").State().Paused)
	w = do(s, http.MethodPost, "/api/v1/streams/none:pause", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, http.MethodGet, "/api/v1/streams/spk/sdp", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/sdp", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "m=audio 5004 RTP/AVP 96")
	w = do(s, http.MethodGet, "/api/v1/streams/mic/sdp", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(s, http.MethodGet, "/api/v1/streams/none/sdp", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamTableApis(t *testing.T) {
	s := newTestService(t)

	w := do(s, http.MethodPost, "/api/v1/streamtable",
		`{"name":"spk2","direction":"listener","unique_id":3,"dest_mac":"91:e0:f0:00:fe:03"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(s, http.MethodGet, "/api/v1/streamtable/spk2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "listener", decode(t, w)["direction"])

	w = do(s, http.MethodGet, "/api/v1/streamtable", "")
	assert.Equal(t, float64(3), decode(t, w)["total"])
	// 流表修改重启后才生效
	assert.Nil(t, s.avdecc.Pipeline().Get("spk2"))

	w = do(s, http.MethodPost, "/api/v1/streamtable", `{"name":"bad","direction":"both"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodDelete, "/api/v1/streamtable/spk2", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodGet, "/api/v1/streamtable/spk2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserApis(t *testing.T) {
	s := newTestService(t)

	w := do(s, http.MethodPost, "/api/v1/login", `{"username":"admin","password":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)
	assert.NotEmpty(t, token["access_token"])
	assert.Equal(t, "admin", s.tokens.AccessCheck(token["access_token"].(string)))

	w = do(s, http.MethodGet, "/api/v1/refreshtoken?token="+token["refresh_token"].(string), "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodGet, "/api/v1/refreshtoken?token=bad", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(s, http.MethodPost, "/api/v1/login", `{"username":"admin","password":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(s, http.MethodPost, "/api/v1/users", `{"name":"op","password":"op","control":"spk"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodGet, "/api/v1/users/op", "")
	require.Equal(t, http.StatusOK, w.Code)
	u := decode(t, w)
	assert.Equal(t, "spk", u["control"])
	assert.Nil(t, u["password"])

	w = do(s, http.MethodGet, "/api/v1/users", "")
	assert.Equal(t, float64(2), decode(t, w)["total"])

	w = do(s, http.MethodDelete, "/api/v1/users/op", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodGet, "/api/v1/users/op", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoleInterceptor(t *testing.T) {
	require.NoError(t, auth.Reset(auth.Memory))
	require.NoError(t, auth.Save(&auth.User{Name: "op", Password: "op", View: "*"}, true))

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		want   bool
	}{
		{"entity", http.MethodGet, "/api/v1/entity", "", true},
		{"descriptors", http.MethodGet, "/api/v1/descriptors/0/ENTITY/0", "", true},
		{"streams", http.MethodGet, "/api/v1/streams", "", true},
		{"pause", http.MethodPost, "/api/v1/streams/spk:pause", "", true},
		{"streamtable", http.MethodGet, "/api/v1/streamtable", "op", false},
		{"users", http.MethodDelete, "/api/v1/users/op", "op", false},
		{"admin", http.MethodPost, "/api/v1/streamtable", "admin", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			r.Header.Set(usernameHeaderKey, tt.user)
			w := httptest.NewRecorder()
			assert.Equal(t, tt.want, roleInterceptor(w, r))
			if !tt.want {
				assert.Equal(t, http.StatusForbidden, w.Code)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	id := func(s string) string { return s }

	page, next := paginate(items, id, 2, "")
	assert.Equal(t, []string{"a", "b"}, page)
	assert.Equal(t, "b", next)

	page, next = paginate(items, id, 2, next)
	assert.Equal(t, []string{"c", "d"}, page)
	assert.Equal(t, "d", next)

	page, next = paginate(items, id, 2, next)
	assert.Empty(t, page)
	assert.Equal(t, "d", next)

	page, _ = paginate(items, id, 0, "a")
	assert.Equal(t, []string{"b", "c", "d"}, page)
}
