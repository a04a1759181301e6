package services

import "errors"

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrPeerNotFound = errors.New("peer not found")
	ErrInvalidPeer  = errors.New("peer has the wrong role")
	ErrNotFound     = errors.New("not found")
)
