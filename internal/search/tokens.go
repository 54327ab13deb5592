// Package search derives blind-index tokens for equality search over
// encrypted records. Tokens are deterministic keyed hashes of normalized
// terms: determinism is what makes matching possible and is an accepted,
// documented residual leakage (frequency and co-occurrence analysis
// remain possible under adversarial traffic volume). Only exact
// normalized-term equality is supported.
package search

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/models"
)

// TokenBytes is the truncated HMAC length carried on the wire. 128 bits
// keeps collisions negligible while halving index size.
const TokenBytes = 16

// IndexTokens derives the write-path token set for a record's terms.
func IndexTokens(terms []string, searchKey []byte) ([]models.SearchToken, error) {
	return deriveTokens(terms, searchKey)
}

// QueryTokens derives the query-path token set. It is the identical
// pipeline as IndexTokens; the two entry points exist so call sites
// document which side of the protocol they are on.
func QueryTokens(terms []string, searchKey []byte) ([]models.SearchToken, error) {
	return deriveTokens(terms, searchKey)
}

// TokenizeAndIndex normalizes free text and derives its token set in one
// step, the common write-path shape.
func TokenizeAndIndex(text string, searchKey []byte) ([]models.SearchToken, error) {
	return deriveTokens(Tokenize(text), searchKey)
}

func deriveTokens(terms []string, searchKey []byte) ([]models.SearchToken, error) {
	if len(searchKey) != crypto.KeySize {
		return nil, crypto.ErrInvalidKey
	}

	seen := make(map[models.SearchToken]struct{}, len(terms))
	tokens := make([]models.SearchToken, 0, len(terms))
	for _, term := range terms {
		t := Normalize(term)
		if t == "" {
			continue
		}

		mac := hmac.New(sha256.New, searchKey)
		mac.Write([]byte(t))
		sum := mac.Sum(nil)

		token := models.SearchToken(hex.EncodeToString(sum[:TokenBytes]))
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	return tokens, nil
}
