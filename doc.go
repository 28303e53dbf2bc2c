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

// Package ecovisor is a pure Go process manager driven by PM2 style
// ecosystem files.
//
// Each app in an ecosystem file (see package ecosystem) becomes one or more
// services, one per instance, named <app>:<index>.  A Manager owns the
// services, runs periodic health checks, and restarts processes that exit
// or outgrow their memory ceiling.  Apps with watch set are restarted when
// files in their working directory change.
//
// A Manager may be exposed over HTTP using package rest, so that it is
// possible to register the manager within an existing server instance.
package ecovisor
