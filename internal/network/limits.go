// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package network

// In this file: Slack API limits and their validation.

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// TierLimit tunes the limiter of a single tier.
type TierLimit struct {
	// Boost is added to the tier's base events per minute.
	Boost uint `toml:"boost" validate:"lte=120"`
	// Burst is the number of events allowed to happen at once.
	Burst uint `toml:"burst" validate:"gte=1,lte=10"`
}

// Limiter returns a new limiter for tier t.
func (tl TierLimit) Limiter(t Tier) *rate.Limiter {
	return NewLimiter(t, tl.Burst, int(tl.Boost))
}

// Limits contains the API limits used by the Slack client.
type Limits struct {
	// Tier2 is applied to conversations.list.
	Tier2 TierLimit `toml:"tier_2" validate:"required"`
	// Special is applied to chat.postMessage.
	Special TierLimit `toml:"special" validate:"required"`
	// Timeout bounds every single API call, including the time spent waiting
	// on the limiter.
	Timeout time.Duration `toml:"timeout" validate:"gte=1s,lte=10m"`
	// ChannelsPerPage is the page size for conversations.list.
	ChannelsPerPage int `toml:"channels_per_page" validate:"gte=1,lte=1000"`
}

// DefLimits are the default limits.
var DefLimits = Limits{
	Tier2: TierLimit{
		Boost: 20,
		Burst: 3,
	},
	Special: TierLimit{
		Boost: 0,
		Burst: 1,
	},
	Timeout:         30 * time.Second,
	ChannelsPerPage: 200,
}

// ErrInvalidLimits is returned by Validate and Apply when the limits fail
// validation.
var ErrInvalidLimits = errors.New("invalid API limits")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the limits for sanity.
func (l *Limits) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLimits, err)
	}
	return nil
}

// Apply validates other and, if it is valid, replaces l with it.
func (l *Limits) Apply(other Limits) error {
	if err := other.Validate(); err != nil {
		return err
	}
	*l = other
	return nil
}
