// Package identity derives the storage key a draft is filed under.
//
// A key has the shape
//
//	draft:<period>:<slug(name)>:<phone>
//
// While the user is still typing, name and phone fall back to fixed
// sentinels (SentinelName, SentinelPhone) so the key does not change on every
// keystroke. The key only becomes canonical once the name reaches
// Policy.MinNameRunes runes and the phone is exactly Policy.PhoneDigits
// digits, or once an identity is confirmed from a known-identity list.
//
// Resolution is pure: it never reads storage, and identical inputs always
// yield the identical key. Callers that need to find drafts filed under an
// earlier, less complete version of the same inputs use EnumerateLegacyKeys.
package identity
