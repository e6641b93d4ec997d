// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cnotch/apirouter"
	"github.com/cnotch/avbhub/adp"
	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/avdecc"
	"github.com/cnotch/avbhub/config"
	"github.com/cnotch/avbhub/network"
	adppdu "github.com/cnotch/avbhub/protos/adp"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/provider/auth"
	"github.com/cnotch/avbhub/provider/streams"
	"github.com/cnotch/avbhub/stats"
	"github.com/cnotch/avbhub/stream"
)

const (
	usernameHeaderKey = "user_name_in_token"
)

var (
	buffers = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 1024*2))
		},
	}
	noAuthRequired = map[string]bool{
		"/api/v1/login":        true,
		"/api/v1/server":       true,
		"/api/v1/runtime":      true,
		"/api/v1/refreshtoken": true,
	}
)

var crossdomainxml = []byte(
	`<?xml version="1.0" ?><cross-domain-policy>
			<allow-access-from domain="*" />
			<allow-http-request-headers-from domain="*" headers="*"/>
		</cross-domain-policy>`)

func (s *Service) initApis(mux *http.ServeMux) {
	api := apirouter.NewForGRPC(
		// 系统信息类API
		apirouter.POST("/api/v1/login", s.onLogin),
		apirouter.GET("/api/v1/server", s.onGetServerInfo),
		apirouter.GET("/api/v1/runtime", s.onGetRuntime),
		apirouter.GET("/api/v1/refreshtoken", s.onRefreshToken),

		// 实体API
		apirouter.GET("/api/v1/entity", s.onGetEntity),
		apirouter.GET("/api/v1/entities", s.onListEntities),
		apirouter.GET("/api/v1/entities/{id=*}", s.onGetPeer),
		apirouter.GET("/api/v1/descriptors/{config=*}/{type=*}", s.onListDescriptors),
		apirouter.GET("/api/v1/descriptors/{config=*}/{type=*}/{index=*}", s.onGetDescriptor),

		// 流运行时API
		apirouter.GET("/api/v1/streams", s.onListStreams),
		apirouter.GET("/api/v1/streams/{name=*}", s.onGetStreamInfo),
		apirouter.GET("/api/v1/streams/{name=*}/sdp", s.onGetStreamSDP),
		apirouter.POST("/api/v1/streams/{name=*}:pause", s.onPauseStream),
		apirouter.POST("/api/v1/streams/{name=*}:resume", s.onResumeStream),

		// 流表管理API，重启后生效
		apirouter.GET("/api/v1/streamtable", s.onListStreamTable),
		apirouter.GET("/api/v1/streamtable/{name=*}", s.onGetStreamTable),
		apirouter.DELETE("/api/v1/streamtable/{name=*}", s.onDelStreamTable),
		apirouter.POST("/api/v1/streamtable", s.onSaveStreamTable),

		// 用户管理API
		apirouter.GET("/api/v1/users", s.onListUsers),
		apirouter.GET("/api/v1/users/{userName=*}", s.onGetUser),
		apirouter.DELETE("/api/v1/users/{userName=*}", s.onDelUser),
		apirouter.POST("/api/v1/users", s.onSaveUser),
	)

	iterc := apirouter.ChainInterceptor(apirouter.PreInterceptor(s.authInterceptor),
		apirouter.PreInterceptor(roleInterceptor))

	// api add to mux
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if path.Base(r.URL.Path) == "crossdomain.xml" {
			w.Header().Set("Content-Type", "application/xml")
			w.Write(crossdomainxml)
			return
		}

		path := strings.ToLower(r.URL.Path)
		if _, ok := noAuthRequired[path]; ok || !config.Auth() || iterc.PreHandle(w, r) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			api.ServeHTTP(w, r)
		}
	})
}

// 刷新Token
func (s *Service) onRefreshToken(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	token := r.URL.Query().Get("token")
	if token != "" {
		newtoken := s.tokens.Refresh(token)
		if newtoken != nil {
			writeJSON(w, newtoken)
			return
		}
	}

	http.Error(w, "Token is not valid", http.StatusUnauthorized)
}

// 登录
func (s *Service) onLogin(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	type UserCredentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// 提取凭证
	var uc UserCredentials
	err := json.NewDecoder(r.Body).Decode(&uc)
	if err != nil {
		// 尝试 Form解析
		uc.Username = r.FormValue("username")
		uc.Password = r.FormValue("password")
		if len(uc.Username) == 0 || len(uc.Password) == 0 {
			http.Error(w, "用户名或密码错误", http.StatusForbidden)
			return
		}
	}

	// 验证用户和密码
	u := auth.Get(uc.Username)
	if u == nil || u.ValidatePassword(uc.Password) != nil {
		s.logger.Warnf("login failed, user = %q, remote = %s", uc.Username, r.RemoteAddr)
		http.Error(w, "用户名或密码错误", http.StatusForbidden)
		return
	}

	// 新建Token，并返回
	writeJSON(w, s.tokens.NewToken(u.Name))
}

// 获取服务信息
func (s *Service) onGetServerInfo(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	type server struct {
		Vendor    string     `json:"vendor"`
		Name      string     `json:"name"`
		Version   string     `json:"version"`
		OS        string     `json:"os"`
		Arch      string     `json:"arch"`
		StartOn   string     `json:"start_on"`
		Duration  string     `json:"duration"`
		EntityID  avtp.EUI64 `json:"entity_id"`
		Interface string     `json:"interface"`
		MAC       string     `json:"mac"`
		IPs       []string   `json:"ips"`
		TLS       bool       `json:"tls"`
	}
	cfg := s.avdecc.Config()
	srv := server{
		Vendor:    config.Vendor,
		Name:      config.Name,
		Version:   config.Version,
		OS:        runtime.GOOS,
		Arch:      strings.ToUpper(runtime.GOARCH),
		StartOn:   stats.StartingTime.Format(time.RFC3339Nano),
		Duration:  time.Since(stats.StartingTime).String(),
		EntityID:  s.avdecc.Model().Entity().EntityID,
		Interface: cfg.IfName,
		MAC:       s.avdecc.MAC().String(),
		IPs:       network.InterfaceIPs(cfg.IfName),
		TLS:       s.tlsusing,
	}

	writeJSON(w, &srv)
}

// 获取运行时信息
func (s *Service) onGetRuntime(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	const extraKey = "extra"

	type streamCount struct {
		Talkers   int `json:"talkers"`
		Listeners int `json:"listeners"`
		Running   int `json:"running"`
	}
	type runtime struct {
		On          string            `json:"on"`
		Proc        stats.Proc        `json:"proc"`
		Streams     streamCount       `json:"streams"`
		Peers       int               `json:"peers"`
		Controllers int               `json:"controllers"`
		Interface   stats.FlowSample  `json:"interface"`
		StreamFlow  stats.FlowSample  `json:"stream_flow"`
		Tap         stats.ConnsSample `json:"tap"`
		Events      stats.ConnsSample `json:"events"`
		Extra       *stats.Runtime    `json:"extra,omitempty"`
	}

	var sc streamCount
	for _, info := range s.avdecc.Pipeline().Infos() {
		if info.Talker {
			sc.Talkers++
		} else {
			sc.Listeners++
		}
		if info.State.Running && !info.State.Paused {
			sc.Running++
		}
	}

	rt := runtime{
		On:          time.Now().Format(time.RFC3339Nano),
		Proc:        stats.MeasureRuntime(),
		Streams:     sc,
		Peers:       s.avdecc.ADP().Peers().Count(),
		Controllers: len(s.avdecc.AECP().Registered()),
		Interface:   s.avdecc.Flow().GetSample(),
		StreamFlow:  s.avdecc.Pipeline().Flow().GetSample(),
		Tap:         stats.TapConns.GetSample(),
		Events:      stats.EventConns.GetSample(),
	}

	params := r.URL.Query()
	if strings.TrimSpace(params.Get(extraKey)) == "1" {
		rt.Extra = stats.MeasureFullRuntime()
	}

	writeJSON(w, &rt)
}

// 本实体的通告信息和获取/锁定状态
func (s *Service) onGetEntity(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	type entity struct {
		ADP           adppdu.PDU    `json:"adp"`
		Ownership     aem.Ownership `json:"ownership"`
		CurrentConfig uint16        `json:"current_configuration"`
		MAC           string        `json:"mac"`
		Controllers   []avtp.EUI64  `json:"controllers"`
	}
	model := s.avdecc.Model()
	writeJSON(w, &entity{
		ADP:           s.avdecc.ADP().Info(),
		Ownership:     model.Ownership(),
		CurrentConfig: model.CurrentConfig(),
		MAC:           s.avdecc.MAC().String(),
		Controllers:   s.avdecc.AECP().Registered(),
	})
}

func (s *Service) onListEntities(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	pageSize, pageToken, err := listParamers(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	peers := s.avdecc.ADP().Peers().List()
	page, next := paginate(peers, func(p adp.Peer) string { return p.EntityID.String() }, pageSize, pageToken)

	type peerInfos struct {
		Total         int        `json:"total"`
		NextPageToken string     `json:"next_page_token"`
		Entities      []adp.Peer `json:"entities,omitempty"`
	}
	writeJSON(w, &peerInfos{Total: len(peers), NextPageToken: next, Entities: page})
}

func (s *Service) onGetPeer(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	id, err := avtp.ParseEUI64(pathParams.ByName("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, ok := s.avdecc.ADP().Peers().Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, &p)
}

// descriptorInfo 描述符的 JSON 视图和线上编码
type descriptorInfo struct {
	Type       aem.DescriptorType `json:"type"`
	Index      uint16             `json:"index"`
	Descriptor aem.Descriptor     `json:"descriptor"`
	Raw        string             `json:"raw"`
}

// describe 编码后再解码，得到与模型无共享的快照
func (s *Service) describe(config uint16, t aem.DescriptorType, index uint16) (*descriptorInfo, error) {
	buf := make([]byte, aem.MaxDescriptorSize)
	n, err := s.avdecc.Model().SerializeDescriptor(config, t, index, buf)
	if err != nil {
		return nil, err
	}
	d, err := aem.Decode(t, buf[:n])
	if err != nil {
		return nil, err
	}
	return &descriptorInfo{
		Type:       t,
		Index:      index,
		Descriptor: d,
		Raw:        hex.EncodeToString(buf[:n]),
	}, nil
}

func descriptorParams(pathParams apirouter.Params) (ci uint16, t aem.DescriptorType, err error) {
	v, err := strconv.ParseUint(pathParams.ByName("config"), 10, 16)
	if err != nil {
		return 0, 0, err
	}
	t, err = aem.ParseDescriptorType(pathParams.ByName("type"))
	return uint16(v), t, err
}

func (s *Service) onListDescriptors(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	ci, t, err := descriptorParams(pathParams)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list := s.avdecc.Model().Descriptors(ci, t)
	infos := make([]*descriptorInfo, 0, len(list))
	for _, d := range list {
		info, err := s.describe(ci, t, d.DescriptorIndex())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		infos = append(infos, info)
	}
	writeJSON(w, infos)
}

func (s *Service) onGetDescriptor(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	ci, t, err := descriptorParams(pathParams)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	index, err := strconv.ParseUint(pathParams.ByName("index"), 10, 16)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := s.describe(ci, t, uint16(index))
	if errors.Is(err, aem.ErrUnknownDescriptor) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, info)
}

func (s *Service) onListStreams(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	pageSize, pageToken, err := listParamers(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var infos []stream.Info
	for _, info := range s.avdecc.Pipeline().Infos() {
		if s.permitted(r, info.Name, auth.ViewRight) {
			infos = append(infos, info)
		}
	}
	page, next := paginate(infos, func(i stream.Info) string { return i.Name }, pageSize, pageToken)

	type streamInfos struct {
		Total         int           `json:"total"`
		NextPageToken string        `json:"next_page_token"`
		Streams       []stream.Info `json:"streams,omitempty"`
	}
	writeJSON(w, &streamInfos{Total: len(infos), NextPageToken: next, Streams: page})
}

func (s *Service) onGetStreamInfo(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	name := pathParams.ByName("name")
	if !s.permitted(r, name, auth.ViewRight) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	runner := s.avdecc.Pipeline().Get(name)
	if runner == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, runner.Info())
}

func (s *Service) onGetStreamSDP(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	name := pathParams.ByName("name")
	if !s.permitted(r, name, auth.ViewRight) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	sdp, err := s.avdecc.SDP(name)
	switch {
	case err == avdecc.ErrNoSuchStream:
		http.NotFound(w, r)
	case err == avdecc.ErrNotRTP:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/sdp")
		io.WriteString(w, sdp)
	}
}

func (s *Service) onPauseStream(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	s.pauseStream(w, r, pathParams.ByName("name"), true)
}

func (s *Service) onResumeStream(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	s.pauseStream(w, r, pathParams.ByName("name"), false)
}

func (s *Service) pauseStream(w http.ResponseWriter, r *http.Request, name string, pause bool) {
	if !s.permitted(r, name, auth.ControlRight) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	if err := s.avdecc.Pipeline().PauseByName(name, pause); err != nil {
		http.NotFound(w, r)
		return
	}
	s.logger.Infof("stream %s paused = %v by %q", name, pause, r.Header.Get(usernameHeaderKey))
	w.WriteHeader(http.StatusOK)
}

func (s *Service) onListStreamTable(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	pageSize, pageToken, err := listParamers(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	all := streams.All()
	page, next := paginate(all, func(st *streams.Stream) string { return st.Name }, pageSize, pageToken)

	type streamTable struct {
		Total         int               `json:"total"`
		NextPageToken string            `json:"next_page_token"`
		Streams       []*streams.Stream `json:"streams,omitempty"`
	}
	writeJSON(w, &streamTable{Total: len(all), NextPageToken: next, Streams: page})
}

func (s *Service) onGetStreamTable(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	st := streams.Get(pathParams.ByName("name"))
	if st == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, st)
}

func (s *Service) onDelStreamTable(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	if err := streams.Del(pathParams.ByName("name")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) onSaveStreamTable(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	st := &streams.Stream{}
	if err := json.NewDecoder(r.Body).Decode(st); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := streams.Save(st); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) onListUsers(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	pageSize, pageToken, err := listParamers(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	users := auth.All()
	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	page, next := paginate(users, func(u *auth.User) string { return u.Name }, pageSize, pageToken)

	type userInfos struct {
		Total         int         `json:"total"`
		NextPageToken string      `json:"next_page_token"`
		Users         []auth.User `json:"users,omitempty"`
	}

	list := &userInfos{
		Total:         len(users),
		NextPageToken: next,
		Users:         make([]auth.User, 0, len(page)),
	}
	for _, u := range page {
		u2 := *u
		u2.Password = ""
		list.Users = append(list.Users, u2)
	}
	writeJSON(w, list)
}

func (s *Service) onGetUser(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	userName := pathParams.ByName("userName")
	u := auth.Get(userName)
	if u == nil {
		http.NotFound(w, r)
		return
	}

	u2 := *u
	u2.Password = ""
	writeJSON(w, &u2)
}

func (s *Service) onDelUser(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	userName := strings.ToLower(pathParams.ByName("userName"))
	if err := auth.Del(userName); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.tokens.Revoke(userName)
	w.WriteHeader(http.StatusOK)
}

func (s *Service) onSaveUser(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	u := &auth.User{}
	err := json.NewDecoder(r.Body).Decode(u)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updatePassword := r.URL.Query().Get("update_password") == "1"
	if err = auth.Save(u, updatePassword); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, o interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := jsonTo(w, o); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonTo(w io.Writer, o interface{}) error {
	formatted := buffers.Get().(*bytes.Buffer)
	formatted.Reset()
	defer buffers.Put(formatted)

	body, err := json.Marshal(o)
	if err != nil {
		return err
	}

	if err := json.Indent(formatted, body, "", "\t"); err != nil {
		return err
	}

	_, err = w.Write(formatted.Bytes())
	return err
}

func listParamers(params url.Values) (pageSize int, pageToken string, err error) {
	pageSizeStr := params.Get("page_size")
	pageSize = 20
	if pageSizeStr != "" {
		pageSize, err = strconv.Atoi(pageSizeStr)
		if err != nil {
			return pageSize, pageToken, err
		}
	}
	pageToken = params.Get("page_token")
	return
}

// paginate 返回 key 大于 pageToken 的至多 pageSize 项，items 须按 key 升序
func paginate[T any](items []T, key func(T) string, pageSize int, pageToken string) (page []T, next string) {
	begin := sort.Search(len(items), func(i int) bool { return key(items[i]) > pageToken })
	end := begin + pageSize
	if pageSize <= 0 || end > len(items) {
		end = len(items)
	}

	next = pageToken
	page = items[begin:end]
	if len(page) > 0 {
		next = key(page[len(page)-1])
	}
	return
}

// checkToken 验证 ?token=，未启用验证时总是通过
func (s *Service) checkToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !config.Auth() {
		return "", true
	}

	token := r.URL.Query().Get("token")
	if token != "" {
		if username := s.tokens.AccessCheck(token); username != "" {
			return username, true
		}
	}

	http.Error(w, "Token is not valid", http.StatusUnauthorized)
	return "", false
}

// ?token=
func (s *Service) authInterceptor(w http.ResponseWriter, r *http.Request) bool {
	username, ok := s.checkToken(w, r)
	if ok {
		r.Header.Set(usernameHeaderKey, username)
	}
	return ok
}

// permitted 当前用户对流是否有指定权限
func (s *Service) permitted(r *http.Request, name string, right auth.AccessRight) bool {
	if !config.Auth() {
		return true
	}
	u := auth.Get(r.Header.Get(usernameHeaderKey))
	return u != nil && u.ValidatePermission(name, right)
}

func roleInterceptor(w http.ResponseWriter, r *http.Request) bool {
	p := r.URL.Path
	// 实体和流查询无需管理员身份，流的权限由处理函数按流名检查
	if r.Method == http.MethodGet && (p == "/api/v1/entity" ||
		strings.HasPrefix(p, "/api/v1/entities") ||
		strings.HasPrefix(p, "/api/v1/descriptors/") ||
		strings.HasPrefix(p, "/api/v1/streams")) {
		return true
	}
	if r.Method == http.MethodPost && strings.HasPrefix(p, "/api/v1/streams/") {
		return true
	}

	userName := r.Header.Get(usernameHeaderKey)
	u := auth.Get(userName)
	if u == nil || !u.Admin {
		http.Error(w, "访问被拒绝，请用管理员登录", http.StatusForbidden)
		return false
	}

	return true
}
