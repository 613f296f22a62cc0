// Package seedrapi wraps the Seedr.cc REST surface. It is the only package
// that speaks the remote wire protocol; the two JSON shapes Seedr uses for
// transfers and the field aliases on sub-folders are normalised here so all
// other layers see one uniform model.
package seedrapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/lumenarr/seedr/utils/fileutil"
	"github.com/lumenarr/seedr/utils/httputil"
	"github.com/lumenarr/seedr/utils/log"
)

// Client talks to the Seedr REST API with basic auth.
type Client struct {
	config Config
}

// New creates a new Client.
func New(config Config) (*Client, error) {
	config = config.applyDefaults()
	if config.Email == "" || config.Password == "" {
		return nil, errors.New("invalid config: missing email or password")
	}
	return &Client{config}, nil
}

func (c *Client) url(parts ...string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.Join(parts, "/")
}

func (c *Client) auth() httputil.SendOption {
	return httputil.SendBasicAuth(c.config.Email, c.config.Password)
}

func (c *Client) parse(op string, resp *http.Response, v interface{ ok() bool }) error {
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %s", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ProtocolError{op, "empty response body"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ProtocolError{op, fmt.Sprintf("unmarshal body: %s", err)}
	}
	if !v.ok() {
		return ProtocolError{op, "result flag not true"}
	}
	return nil
}

// RootContents lists the root folder.
func (c *Client) RootContents() (*Snapshot, error) {
	return c.folderContents(c.url("folder"))
}

// FolderContents lists the folder with the given id.
func (c *Client) FolderContents(folderID int64) (*Snapshot, error) {
	return c.folderContents(c.url("folder", itoa(folderID)))
}

func (c *Client) folderContents(url string) (*Snapshot, error) {
	resp, err := httputil.Get(url,
		c.auth(),
		httputil.SendTimeout(c.config.Timeout),
		httputil.SendRetry(c.config.ListRetries, 0, 0))
	if err != nil {
		return nil, err
	}
	var r folderContentsResponse
	if err := c.parse("folder contents", resp, &r); err != nil {
		return nil, err
	}
	return r.toSnapshot(), nil
}

// AddMagnet registers a magnet link as a new transfer. Never retried: a
// timed-out add may have succeeded server-side.
func (c *Client) AddMagnet(magnet string) (*AddResult, error) {
	form := url.Values{"magnet": {magnet}}
	resp, err := httputil.Post(c.url("transfer", "magnet"),
		c.auth(),
		httputil.SendTimeout(c.config.Timeout),
		httputil.SendBody(strings.NewReader(form.Encode())),
		httputil.SendHeaders(map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		}))
	if err != nil {
		return nil, err
	}
	return c.parseAdd(resp)
}

// AddTorrentFile registers a .torrent payload as a new transfer. Never
// retried for the same reason as AddMagnet.
func (c *Client) AddTorrentFile(filename string, torrent []byte) (*AddResult, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %s", err)
	}
	if _, err := part.Write(torrent); err != nil {
		return nil, fmt.Errorf("write form file: %s", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %s", err)
	}
	resp, err := httputil.Post(c.url("transfer", "file"),
		c.auth(),
		httputil.SendTimeout(c.config.Timeout),
		httputil.SendBody(body),
		httputil.SendHeaders(map[string]string{
			"Content-Type": w.FormDataContentType(),
		}))
	if err != nil {
		return nil, err
	}
	return c.parseAdd(resp)
}

func (c *Client) parseAdd(resp *http.Response) (*AddResult, error) {
	var r addTransferResponse
	if err := c.parse("add transfer", resp, &r); err != nil {
		return nil, err
	}
	t := r.toTransfer()
	return &AddResult{ID: t.ID, Name: t.Name, Hash: t.Hash}, nil
}

// DeleteTransfer removes an in-flight transfer.
func (c *Client) DeleteTransfer(id int64) error {
	return c.delete("torrent", id)
}

// DeleteFolder removes an assembled folder.
func (c *Client) DeleteFolder(id int64) error {
	return c.delete("folder", id)
}

// DeleteFile removes an assembled file.
func (c *Client) DeleteFile(id int64) error {
	return c.delete("file", id)
}

func (c *Client) delete(kind string, id int64) error {
	resp, err := httputil.Delete(c.url(kind, itoa(id)),
		c.auth(),
		httputil.SendTimeout(c.config.Timeout),
		httputil.SendRetry(c.config.ListRetries, 0, 0))
	if err != nil {
		return err
	}
	// Seedr reports delete failures under HTTP 200, so the result flag is
	// checked like everywhere else.
	var r apiResult
	return c.parse("delete "+kind, resp, &r)
}

// GetUser returns account information.
func (c *Client) GetUser() (*User, error) {
	resp, err := httputil.Get(c.url("user"),
		c.auth(),
		httputil.SendTimeout(c.config.Timeout))
	if err != nil {
		return nil, err
	}
	var r userResponse
	if err := c.parse("get user", resp, &r); err != nil {
		return nil, err
	}
	return r.toUser(), nil
}

// DownloadFileToPath streams the file with the given id into path. The bytes
// land in path+".part" first and are renamed into place on clean completion;
// any failure removes the partial file.
func (c *Client) DownloadFileToPath(fileID int64, path string) (err error) {
	resp, err := httputil.Get(c.url("file", itoa(fileID)),
		c.auth(),
		httputil.SendTimeout(c.config.DownloadTimeout),
		httputil.SendRetry(c.config.downloadRetries(), 0, 0))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	part := path + fileutil.PartSuffix
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create part file: %s", err)
	}
	defer func() {
		if err != nil {
			if rerr := os.Remove(part); rerr != nil && !os.IsNotExist(rerr) {
				log.Warnf("Failed to clean up part file %s: %s", part, rerr)
			}
		}
	}()

	if _, err = io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("stream file: %s", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close part file: %s", err)
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale file: %s", err)
	}
	if err = os.Rename(part, path); err != nil {
		return fmt.Errorf("rename part file: %s", err)
	}
	return nil
}

func itoa(id int64) string {
	return fmt.Sprintf("%d", id)
}
