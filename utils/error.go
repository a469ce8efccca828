package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorConfiguration marks a bad merge-policy or duplicate-strategy name
// passed to bulk reconciliation. It is fatal to the call and never retried.
var ErrorConfiguration = errors.New("improperly configured reconciliation")
