package config

import "fmt"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RevokedTokenKey marks a JWT id as logged out until the token would expire.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// SessionAnswersKey is the hash of autosaved answers (question id -> answer) for a session.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID int64) string {
	return fmt.Sprintf("session:%d:answers", sessionID)
}

// TestQuestionsKey caches the graded question set of a test, answer keys included.
// Server-side only; candidates receive the stripped form.
func (r *CacheKeyStruct) TestQuestionsKey(testID int64) string {
	return fmt.Sprintf("test:%d:questions", testID)
}

var CacheKey = NewCacheKeyStruct()
