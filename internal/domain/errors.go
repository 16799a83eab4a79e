// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrNotApproved = errors.New("workflow not approved")
var ErrInputsNotGathered = errors.New("user inputs not gathered")
var ErrWorkflowNotFound = errors.New("workflow not found")
var ErrDependencyOrder = errors.New("step dependency references a later or unknown step")
