package db

import "errors"

var (
	errFailedOpenDB      = errors.New("failed to open database")
	errFailedToEnableWAL = errors.New("failed to enable WAL mode")
	errFailedToInit      = errors.New("failed to initialize schema")
	errFailedToQuery     = errors.New("failed to query")
	errFailedToInsert    = errors.New("failed to insert")
	errFailedToScan      = errors.New("failed to scan")
	errFailedToClean     = errors.New("failed to clean")
)
