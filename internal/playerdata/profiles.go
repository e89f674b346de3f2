package playerdata

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/ernie/arkwatch/internal/domain"
)

const profileExt = ".arkprofile"

var (
	errNoPlayerName = errors.New("no PlayerName property")
	errBadString    = errors.New("malformed string property")
)

// ProfileDir reads player profiles from a server save directory
type ProfileDir struct {
	dir string
}

// NewProfileDir creates a reader for dir
func NewProfileDir(dir string) *ProfileDir {
	return &ProfileDir{dir: dir}
}

// Read scans the save directory. Files that cannot be parsed come back as
// corrupt records keyed by file name; only a failure to list the directory is an error.
func (p *ProfileDir) Read(ctx context.Context) ([]domain.SaveRecord, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", p.dir, err)
	}

	var records []domain.SaveRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), profileExt) {
			continue
		}
		records = append(records, p.readProfile(entry))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FileName < records[j].FileName
	})
	return records, nil
}

func (p *ProfileDir) readProfile(entry os.DirEntry) domain.SaveRecord {
	rec := domain.SaveRecord{FileName: entry.Name()}

	stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
	if !isSteamID(stem) {
		rec.Corrupt = true
		return rec
	}
	rec.ID = stem

	info, err := entry.Info()
	if err != nil {
		rec.Corrupt = true
		return rec
	}
	rec.LastActive = info.ModTime().UTC()

	data, err := os.ReadFile(filepath.Join(p.dir, entry.Name()))
	if err != nil {
		rec.Corrupt = true
		return rec
	}
	name, err := PlayerName(data)
	if err != nil {
		rec.Corrupt = true
		return rec
	}
	rec.DisplayName = name
	return rec
}

// PlayerName extracts the PlayerName string property from a serialized profile
func PlayerName(data []byte) (string, error) {
	key := encodeFString("PlayerName")
	idx := bytes.Index(data, key)
	if idx < 0 {
		return "", errNoPlayerName
	}
	rest := data[idx+len(key):]

	typ, n, err := readFString(rest)
	if err != nil {
		return "", err
	}
	if typ != "StrProperty" {
		return "", fmt.Errorf("PlayerName has type %q", typ)
	}
	rest = rest[n:]

	// value size and array index
	if len(rest) < 8 {
		return "", errBadString
	}
	rest = rest[8:]

	name, _, err := readFString(rest)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}

// readFString decodes a length-prefixed, NUL-terminated string. A negative
// length marks UTF-16 content.
func readFString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, errBadString
	}
	length := int64(int32(binary.LittleEndian.Uint32(b)))
	b = b[4:]

	switch {
	case length == 0:
		return "", 4, nil
	case length > 0:
		if length > int64(len(b)) {
			return "", 0, errBadString
		}
		return string(bytes.TrimRight(b[:length], "\x00")), 4 + int(length), nil
	default:
		units := -length
		if units*2 > int64(len(b)) {
			return "", 0, errBadString
		}
		u := make([]uint16, 0, units)
		for i := 0; i < int(units); i++ {
			c := binary.LittleEndian.Uint16(b[i*2:])
			if c == 0 {
				break
			}
			u = append(u, c)
		}
		return string(utf16.Decode(u)), 4 + int(units)*2, nil
	}
}

func encodeFString(s string) []byte {
	buf := make([]byte, 4, 4+len(s)+1)
	binary.LittleEndian.PutUint32(buf, uint32(len(s)+1))
	buf = append(buf, s...)
	return append(buf, 0)
}

func isSteamID(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
