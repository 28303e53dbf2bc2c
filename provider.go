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

package ecovisor

// Provider is what service providers must implement.  Note that except for
// Name, the service manager promises not to call these methods concurrently.
// That is, implementers need not worry about locking.  Applications should
// not use this interface.
type Provider interface {
	// Name returns the name of the provider.  Instances of an app are
	// named <app>:<index>, so "web:0" and "web:1" both match "web".
	Name() string

	// Description returns what you think.  Should be only 32 characters
	// to avoid UI truncation.
	Description() string

	// Start attempts to start the service.  It blocks until the service
	// is either started successfuly, or has definitively failed.
	Start() error

	// Stop attempts to stop the service.  As with Start, it blocks until
	// the operation is complete.  This is never allowed to fail.
	Stop()

	// Check performs a health check on the service.  For a process this
	// is whether it is still running and within its memory ceiling.  If
	// all is well it returns nil, otherwise it returns an error that
	// should give some clue as to the reason for the failed check.
	Check() error

	// Property returns the value of a property.
	Property(PropertyName) (interface{}, error)

	// SetProperty sets the value of a property.
	SetProperty(PropertyName, interface{}) error
}
