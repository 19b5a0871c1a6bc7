// Package provider implements the file-storage service provider: a
// dispatcher that takes messages from the mix network one at a time, applies
// them to a content store and answers through reply tokens.
//
// Replies:
//
//	WriteFile   "OK" once the blob is stored, "ERR" on storage failure
//	ReadFile    status byte followed by the blob for StatusFound
//	DeleteFile  none
//
// ReadFile and DeleteFile carry the 32 character hex address as payload.
package provider
