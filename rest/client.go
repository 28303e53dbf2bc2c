// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ecovisor/ecovisor/ecosystem"
)

// WatchTime is how long, in seconds, the Watch methods ask the server to
// hold a long poll.
const WatchTime = MaxPollTime

type LogInfo struct {
	name    string
	etag    string
	Records []LogRecord
}

// Client talks to an ecovisord server.  It caches what it has fetched, so
// that repeated requests turn into cheap conditional GETs.
type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	apiKey string
	client *http.Client

	// Cached data
	manager  *ManagerInfo
	services map[string]*ServiceInfo // service entries
	names    []string                // service names
	etag     string                  // etag for list of services
	logs     map[string]*LogInfo
	lock     sync.Mutex
}

func (c *Client) SetAuth(user string, pass string) {
	c.lock.Lock()
	c.user = user
	c.pass = pass
	c.auth = true
	c.lock.Unlock()
}

// SetAPIKey sends key in APIKeyHeader on every request.
func (c *Client) SetAPIKey(key string) {
	c.lock.Lock()
	c.apiKey = key
	c.lock.Unlock()
}

func (c *Client) url(name string) string {
	if name == "" {
		return c.base + "/services"
	}
	return c.base + "/services/" + url.PathEscape(name)
}

func (c *Client) appURL(name string) string {
	if name == "" {
		return c.base + "/apps"
	}
	return c.base + "/apps/" + url.PathEscape(name)
}

// Manager returns the server's top level information.
func (c *Client) Manager(ctx context.Context) (*ManagerInfo, error) {
	if _, e := c.pollManager(ctx, "", 0); e != nil {
		return nil, e
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.manager, nil
}

// Watch waits until the manager serial moves past etag, and returns the
// new etag.  An empty etag returns the current one immediately.
func (c *Client) Watch(ctx context.Context, etag string) (string, error) {
	return c.pollManager(ctx, etag, WatchTime)
}

func (c *Client) pollManager(ctx context.Context, etag string, secs int) (string, error) {
	minfo := &ManagerInfo{}
	ntag, e := c.poll(ctx, c.base+"/", etag, secs, minfo)
	if e != nil {
		return "", e
	}
	if ntag == "" {
		return etag, nil
	}
	minfo.etag = ntag
	c.lock.Lock()
	c.manager = minfo
	c.lock.Unlock()
	return ntag, nil
}

func (c *Client) pollServices(ctx context.Context, secs int) ([]string, error) {

	v := []string{}

	c.lock.Lock()
	otag := c.etag
	onames := c.names
	c.lock.Unlock()

	etag, e := c.poll(ctx, c.url(""), otag, secs, &v)
	if e != nil {
		return nil, e
	}
	if etag == "" {
		return onames, nil
	}
	services := make(map[string]*ServiceInfo)

	c.lock.Lock()
	c.etag = etag
	c.names = v
	// save the services we found
	for _, n := range v {
		if svc, ok := c.services[n]; ok {
			services[n] = svc
		}
	}
	c.services = services
	c.lock.Unlock()

	return v, nil
}

// Services returns the names of the services known to the server.
func (c *Client) Services(ctx context.Context) ([]string, error) {
	return c.pollServices(ctx, 0)
}

// WatchServices waits for the list of services to change.
func (c *Client) WatchServices(ctx context.Context) ([]string, error) {
	return c.pollServices(ctx, WatchTime)
}

func (c *Client) pollService(ctx context.Context, name string, secs int, last *ServiceInfo) (*ServiceInfo, error) {

	v := &ServiceInfo{}
	c.lock.Lock()
	osvc, ok := c.services[name]
	c.lock.Unlock()

	otag := ""
	switch {
	case last == nil:
		secs = 0
		if ok {
			otag = osvc.etag
		}
	case ok && last.etag != osvc.etag:
		// The cache is already newer than what the caller has.
		return osvc, nil
	default:
		otag = last.etag
	}

	etag, e := c.poll(ctx, c.url(name), otag, secs, v)
	if e != nil {
		c.lock.Lock()
		delete(c.services, name)
		c.lock.Unlock()
		return nil, e
	}
	if etag == "" {
		if osvc == nil {
			return last, nil
		}
		return osvc, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.services[name] = v
	c.lock.Unlock()
	return v, nil
}

func (c *Client) GetService(ctx context.Context, name string) (*ServiceInfo, error) {
	return c.pollService(ctx, name, 0, nil)
}

// WatchService waits for the service to change from last.
func (c *Client) WatchService(ctx context.Context, name string, last *ServiceInfo) (*ServiceInfo, error) {
	return c.pollService(ctx, name, WatchTime, last)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, e := http.NewRequestWithContext(ctx, method, url, body)
	if e != nil {
		return nil, e
	}
	c.lock.Lock()
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	c.lock.Unlock()
	return req, nil
}

// readError turns a failed response into an *Error, using the server's
// JSON message when there is one.
func readError(res *http.Response) error {
	e := &Error{Code: res.StatusCode, Message: res.Status}
	if b, err := io.ReadAll(res.Body); err == nil {
		msg := &Error{}
		if json.Unmarshal(b, msg) == nil && msg.Message != "" {
			e.Message = msg.Message
		}
	}
	return e
}

// poll issues an HTTP GET against the URL, optionally checking for a cache,
// including optionally issuing a long poll that tries to wait until the
// value changes.  The return values are the new Etag and any error.  If the
// value did not change, then the returned etag will be "", but the error will
// be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {

	req, e := c.newRequest(ctx, "GET", url, nil)
	if e != nil {
		return "", e
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollEtagHeader, etag)
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}

	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", readError(res)
	}
	if e := json.NewDecoder(res.Body).Decode(v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) post(ctx context.Context, url string) error {
	req, e := c.newRequest(ctx, "POST", url, strings.NewReader(""))
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "text/plain") // we don't really care
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return readError(res)
	}
	return nil
}

func (c *Client) postService(ctx context.Context, name string, action string) error {
	return c.post(ctx, c.url(name)+"/"+action)
}

func (c *Client) EnableService(ctx context.Context, name string) error {
	return c.postService(ctx, name, "enable")
}

func (c *Client) DisableService(ctx context.Context, name string) error {
	return c.postService(ctx, name, "disable")
}

func (c *Client) ClearService(ctx context.Context, name string) error {
	return c.postService(ctx, name, "clear")
}

func (c *Client) RestartService(ctx context.Context, name string) error {
	return c.postService(ctx, name, "restart")
}

func (c *Client) pollLog(ctx context.Context, name string, secs int, last *LogInfo) (*LogInfo, error) {

	v := &LogInfo{name: name}

	c.lock.Lock()
	cached, ok := c.logs[name]
	c.lock.Unlock()

	otag := ""
	switch {
	case last == nil:
		secs = 0
		if ok {
			otag = cached.etag
		}
	case ok && last.etag != cached.etag:
		return cached, nil
	default:
		otag = last.etag
	}

	url := c.url(name) + "/log"
	if name == "" {
		url = c.base + "/log"
	}

	etag, e := c.poll(ctx, url, otag, secs, &v.Records)
	if e != nil {
		c.lock.Lock()
		delete(c.logs, name)
		c.lock.Unlock()
		return nil, e
	}
	if etag == "" {
		if cached == nil {
			return last, nil
		}
		return cached, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.logs[name] = v
	c.lock.Unlock()

	return v, nil
}

// WatchLog waits for new records in the log of the named service, or the
// manager's log if name is empty.
func (c *Client) WatchLog(ctx context.Context, name string, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, name, WatchTime, last)
}

func (c *Client) GetLog(ctx context.Context, name string) (*LogInfo, error) {
	return c.pollLog(ctx, name, 0, nil)
}

// Apps returns a summary of every app the server runs.
func (c *Client) Apps(ctx context.Context) ([]*AppInfo, error) {
	var v []*AppInfo
	if _, e := c.poll(ctx, c.appURL(""), "", 0, &v); e != nil {
		return nil, e
	}
	return v, nil
}

// GetApp fetches the descriptor of one app, encoded as a one app
// ecosystem file in format f.
func (c *Client) GetApp(ctx context.Context, name string, f ecosystem.Format) ([]byte, error) {
	req, e := c.newRequest(ctx, "GET", c.appURL(name)+"?format="+f.String(), nil)
	if e != nil {
		return nil, e
	}
	res, e := c.client.Do(req)
	if e != nil {
		return nil, e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, readError(res)
	}
	return io.ReadAll(res.Body)
}

func (c *Client) RestartApp(ctx context.Context, name string) error {
	return c.post(ctx, c.appURL(name)+"/restart")
}

// NewClient returns a Client handle.  The transport maybe nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t http.RoundTripper, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	c := &Client{
		base:     strings.TrimSuffix(baseURI, "/"),
		client:   &http.Client{Transport: t},
		services: make(map[string]*ServiceInfo),
		logs:     make(map[string]*LogInfo),
	}
	return c
}
