package seedrapi

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Transfer is a cloud-side upload in progress.
type Transfer struct {
	ID       int64
	Name     string
	Hash     string
	Progress float64
	Size     int64
}

// Folder is an assembled multi-file payload.
type Folder struct {
	ID   int64
	Name string
	Size int64
}

// File is an assembled single file.
type File struct {
	ID   int64
	Name string
	Size int64
}

// Snapshot is the immutable per-poll view of a cloud folder's contents.
type Snapshot struct {
	Transfers []Transfer
	Folders   []Folder
	Files     []File
}

// AddResult describes a freshly registered transfer.
type AddResult struct {
	ID   int64
	Name string
	Hash string
}

// User describes the Seedr account.
type User struct {
	Email     string
	SpaceUsed int64
	SpaceMax  int64
}

// progressValue absorbs Seedr's habit of reporting progress as either a
// number or a numeric string. Unparseable values collapse to 0.
type progressValue float64

func (p *progressValue) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*p = 0
		return nil
	}
	*p = progressValue(f)
	return nil
}

// apiResult carries Seedr's result flag. Absent means success; anything but
// a literal true means the call failed even under HTTP 200.
type apiResult struct {
	Result interface{} `json:"result"`
}

func (r apiResult) ok() bool {
	if r.Result == nil {
		return true
	}
	b, isBool := r.Result.(bool)
	return isBool && b
}

// wireTransfer covers both shapes Seedr uses for transfers: the folder
// listing (id/name/hash) and the creation response
// (user_torrent_id/title/torrent_hash).
type wireTransfer struct {
	ID       int64         `json:"id"`
	AltID    int64         `json:"user_torrent_id"`
	Name     string        `json:"name"`
	AltName  string        `json:"title"`
	Hash     string        `json:"hash"`
	AltHash  string        `json:"torrent_hash"`
	Progress progressValue `json:"progress"`
	Size     int64         `json:"size"`
}

func (t wireTransfer) toTransfer() Transfer {
	out := Transfer{
		ID:       t.ID,
		Name:     t.Name,
		Hash:     t.Hash,
		Progress: float64(t.Progress),
		Size:     t.Size,
	}
	if out.ID == 0 {
		out.ID = t.AltID
	}
	if out.Name == "" {
		out.Name = t.AltName
	}
	if out.Hash == "" {
		out.Hash = t.AltHash
	}
	return out
}

// wireFolder accepts the folder_id/folder_name aliases sub-folder entries
// occasionally arrive with.
type wireFolder struct {
	ID      int64  `json:"id"`
	AltID   int64  `json:"folder_id"`
	Name    string `json:"name"`
	AltName string `json:"folder_name"`
	Size    int64  `json:"size"`
}

func (f wireFolder) toFolder() Folder {
	out := Folder{ID: f.ID, Name: f.Name, Size: f.Size}
	if out.ID == 0 {
		out.ID = f.AltID
	}
	if out.Name == "" {
		out.Name = f.AltName
	}
	return out
}

type wireFile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// folderContentsResponse is the inventory shape. Transfers arrive under the
// key "torrents".
type folderContentsResponse struct {
	apiResult
	Torrents []wireTransfer `json:"torrents"`
	Folders  []wireFolder   `json:"folders"`
	Files    []wireFile     `json:"files"`
}

func (r folderContentsResponse) toSnapshot() *Snapshot {
	s := &Snapshot{}
	for _, t := range r.Torrents {
		s.Transfers = append(s.Transfers, t.toTransfer())
	}
	for _, f := range r.Folders {
		s.Folders = append(s.Folders, f.toFolder())
	}
	for _, f := range r.Files {
		s.Files = append(s.Files, File{ID: f.ID, Name: f.Name, Size: f.Size})
	}
	return s
}

type addTransferResponse struct {
	apiResult
	wireTransfer
}

type userResponse struct {
	apiResult
	Account struct {
		Email     string `json:"username"`
		SpaceUsed int64  `json:"space_used"`
		SpaceMax  int64  `json:"space_max"`
	} `json:"account"`

	// Some API revisions inline the fields instead of nesting them.
	Email     string `json:"username,omitempty"`
	SpaceUsed int64  `json:"space_used,omitempty"`
	SpaceMax  int64  `json:"space_max,omitempty"`
}

func (r userResponse) toUser() *User {
	u := &User{
		Email:     r.Account.Email,
		SpaceUsed: r.Account.SpaceUsed,
		SpaceMax:  r.Account.SpaceMax,
	}
	if u.Email == "" {
		u.Email = r.Email
	}
	if u.SpaceUsed == 0 {
		u.SpaceUsed = r.SpaceUsed
	}
	if u.SpaceMax == 0 {
		u.SpaceMax = r.SpaceMax
	}
	return u
}

var _ json.Unmarshaler = (*progressValue)(nil)
