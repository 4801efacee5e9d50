// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package interceptor

import "strings"

// multiError joins the non-nil errors passed to flattenErrs.
type multiError []error

func (e multiError) Error() string {
	strs := make([]string, len(e))
	for i, err := range e {
		strs[i] = err.Error()
	}

	return strings.Join(strs, "\n")
}

// Is reports whether target matches any of the errors held by e.
func (e multiError) Is(target error) bool {
	for _, err := range e {
		if err == target {
			return true
		}
	}

	return false
}

// flattenErrs drops nils, inlines nested multiErrors, and returns nil if
// nothing is left.
func flattenErrs(errs []error) error {
	var flattened multiError
	for _, err := range errs {
		if err == nil {
			continue
		}
		if m, ok := err.(multiError); ok { //nolint
			flattened = append(flattened, m...)

			continue
		}
		flattened = append(flattened, err)
	}
	if len(flattened) == 0 {
		return nil
	}

	return flattened
}
