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

// Package ecosystem describes how an application is launched and supervised.
//
// The central type is App, a Process Launch Descriptor: the name, entry
// point, topology, restart policy, memory ceiling and environment of one
// managed program.  A File is the collection of Apps found in an ecosystem
// file.  Files may be written as a data-only JavaScript module (the
// familiar "module.exports = { apps: [...] }" form), as JSON, or as YAML,
// and any of them can be converted to the others without loss.
//
// Descriptors are static.  Once decoded they are only ever read; the
// supervisor copies what it needs and never writes back.
package ecosystem
