package handlers

import (
	"errors"
	"fmt"
)

var errInvalidReportID = errors.New("invalid report id")

func errInvalidQuery(name string) error {
	return fmt.Errorf("invalid %s parameter", name)
}
