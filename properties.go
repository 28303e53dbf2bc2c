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

// Property names.  Internal names will all start with an underscore.
// Other, provider specific names, may be supplied.  Note that there is
// no provision for property discovery.  Consumers wishing to use a property
// must know the property name and type.
type PropertyName string

const (
	PropLogger      PropertyName = "_Logger"      // Where logs get sent
	PropRestart     PropertyName = "_Restart"     // Auto-restart on failure
	PropRateLimit   PropertyName = "_RateLimit"   // Max starts per period
	PropRatePeriod  PropertyName = "_RatePeriod"  // Period for RateLimit
	PropName        PropertyName = "_Name"        // Service name
	PropDescription PropertyName = "_Description" // Service description
	PropNotify      PropertyName = "_Notify"      // Notification callback
	PropApp         PropertyName = "_App"         // ecosystem.App, read-only
	PropInstance    PropertyName = "_Instance"    // Instance index, read-only
)
