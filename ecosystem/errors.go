// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ecosystem

import (
	"errors"
)

var (
	ErrNoName       = errors.New("App name is required")
	ErrBadName      = errors.New("Bad app name")
	ErrNoScript     = errors.New("App script is required")
	ErrBadExecMode  = errors.New("Bad exec mode")
	ErrBadInstances = errors.New("Bad instance count")
	ErrBadSize      = errors.New("Bad memory size")
	ErrBadEnv       = errors.New("Bad environment variable")
	ErrDuplicateApp = errors.New("Duplicate app name")
	ErrBadFormat    = errors.New("Unknown ecosystem format")
	ErrSyntax       = errors.New("Syntax error")
)
