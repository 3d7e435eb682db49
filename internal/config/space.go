package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cchevrot/backtest/internal/domain"
	"github.com/cchevrot/backtest/internal/strategy"
	"github.com/cchevrot/backtest/internal/ticks"
)

// SearchSpace converts search.params into domain ranges, sorted by name.
func (c *Config) SearchSpace() domain.SearchSpace {
	names := make([]string, 0, len(c.Search.Params))
	for name := range c.Search.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	space := make(domain.SearchSpace, 0, len(names))
	for _, name := range names {
		r := c.Search.Params[name]
		space = append(space, domain.ParamRange{
			Name:     name,
			Initial:  r.Initial.Value,
			Min:      r.Min.Value,
			Max:      r.Max.Value,
			Step:     r.Step,
			Priority: r.Priority,
			Enabled:  r.Enabled == nil || *r.Enabled,
		})
	}
	return space
}

// StrategyParams is the configuration simulated by the simulate command and
// the starting point of a search: the search space's initial values,
// overridden by the strategy section, plus simulation.utc_offset_hours when
// neither names it.
func (c *Config) StrategyParams() domain.Params {
	p := c.SearchSpace().InitialParams()
	for name, v := range c.Strategy {
		p[name] = v.Value
	}
	if _, ok := p[strategy.ParamUTCOffsetHours]; !ok && c.Simulation.UTCOffsetHours != nil {
		p[strategy.ParamUTCOffsetHours] = domain.Number(*c.Simulation.UTCOffsetHours)
	}
	return p
}

// DayFiles returns data.days when set, otherwise the tick files of data.dir
// filtered by data.extensions.
func (c *Config) DayFiles() ([]string, error) {
	if len(c.Data.Days) > 0 {
		return c.Data.Days, nil
	}
	all, err := ticks.ListDays(c.Data.Dir)
	if err != nil {
		return nil, err
	}
	if len(c.Data.Extensions) == 0 {
		return all, nil
	}
	var out []string
	for _, path := range all {
		for _, ext := range c.Data.Extensions {
			if strings.HasSuffix(strings.ToLower(path), strings.ToLower(ext)) {
				out = append(out, path)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no %s files in %s", strings.Join(c.Data.Extensions, "/"), c.Data.Dir)
	}
	return out, nil
}
