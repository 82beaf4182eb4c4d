// Package errors provides structured error handling for service surfaces.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Room errors
	CodeRoomNotFound    Code = "ROOM_NOT_FOUND"
	CodeRoomNameEmpty   Code = "ROOM_NAME_EMPTY"
	CodeRoomFull        Code = "ROOM_FULL"
	CodeRoomColorsTaken Code = "ROOM_COLORS_TAKEN"

	// Player errors
	CodePlayerNotFound         Code = "PLAYER_NOT_FOUND"
	CodePlayerEmptyDisplayName Code = "PLAYER_EMPTY_DISPLAY_NAME"
	CodePlayerAlreadyJoined    Code = "PLAYER_ALREADY_JOINED"

	// Command errors
	CodeCommandInvalidPayload Code = "COMMAND_INVALID_PAYLOAD"
	CodeCommandUnknownType    Code = "COMMAND_UNKNOWN_TYPE"
	CodeDiceOutOfRange        Code = "DICE_OUT_OF_RANGE"

	// Rule pack errors
	CodeRulePackLoadFailed Code = "RULE_PACK_LOAD_FAILED"
	CodeRulePackInvalid    Code = "RULE_PACK_INVALID"

	// Storage errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeSnapshotDecode  Code = "SNAPSHOT_DECODE_FAILED"
	CodeStorageInternal Code = "STORAGE_INTERNAL"
)

// HTTPStatus maps an error code to an HTTP status code.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - malformed or invalid input
	case CodeRoomNameEmpty,
		CodePlayerEmptyDisplayName,
		CodeCommandInvalidPayload,
		CodeCommandUnknownType,
		CodeDiceOutOfRange,
		CodeRulePackInvalid:
		return http.StatusBadRequest

	// Conflict - state doesn't allow operation
	case CodeRoomFull,
		CodeRoomColorsTaken,
		CodePlayerAlreadyJoined:
		return http.StatusConflict

	// Not found - resource doesn't exist
	case CodeRoomNotFound,
		CodePlayerNotFound,
		CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
