package feed

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	StrategyGUID         = "guid"
	StrategyLink         = "link"
	StrategyTitlePubdate = "title_pubdate"
	StrategyContentHash  = "content_hash"

	DefaultHashAlgo = "md5"
)

var hashers = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// DeriveKey computes the identity key of an entry. An empty result means the
// entry cannot be identified and must be skipped.
func DeriveKey(entry Entry, strategy, hashAlgo string) string {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyGUID:
		return strings.TrimSpace(entry.GUID)
	case StrategyLink:
		return strings.TrimSpace(entry.Link)
	case StrategyTitlePubdate:
		return titlePubdateKey(entry)
	case StrategyContentHash:
		return contentHashKey(entry, hashAlgo)
	}

	if key := strings.TrimSpace(entry.GUID); key != "" {
		return key
	}
	if key := strings.TrimSpace(entry.Link); key != "" {
		return key
	}
	return titlePubdateKey(entry)
}

func titlePubdateKey(entry Entry) string {
	title := strings.TrimSpace(entry.Title)
	published := strings.TrimSpace(entry.Published)
	if published == "" {
		published = strings.TrimSpace(entry.Updated)
	}
	return strings.Trim(title+"|"+published, "|")
}

func contentHashKey(entry Entry, hashAlgo string) string {
	body := entry.Body()
	if body == "" {
		return ""
	}

	algo := strings.ToLower(strings.TrimSpace(hashAlgo))
	newHash, ok := hashers[algo]
	if !ok {
		algo = DefaultHashAlgo
		newHash = hashers[algo]
	}

	h := newHash()
	h.Write([]byte(norm.NFC.String(body)))
	return algo + ":" + hex.EncodeToString(h.Sum(nil))
}
