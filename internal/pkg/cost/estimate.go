/*
 * Copyright 2024 The Labman Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cost

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/certlab/labman/internal/pkg/cfn"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Estimated rate for a single resource
type ResourceEstimate struct {
	LogicalId    string
	ResourceType string
	HourlyUSD    float64
	// false when no mapper exists for the resource type
	Mapped bool
}

// Estimated rate for one template's resources
type TemplateEstimate struct {
	TemplateId string
	HourlyUSD  float64
	Resources  []ResourceEstimate
}

// Estimated rate for a whole lab
type Estimate struct {
	Templates []TemplateEstimate
	HourlyUSD float64
	// resource types nobody has written a mapper for, deduplicated
	UnmappedTypes []string
}

// Estimates hourly cost from parsed templates using the mapper registry
type Estimator struct {
	mappers map[string]Mapper
}

func NewEstimator() *Estimator {
	return &Estimator{mappers: defaultMappers()}
}

// Registers (or replaces) the mapper for a resource type
func (e *Estimator) Register(resourceType string, mapper Mapper) {
	e.mappers[resourceType] = mapper
}

// Estimates the hourly rate of a set of parsed templates. Cost hints from
// the lab descriptor override the counted number of resources of a type,
// e.g. when an autoscaling group will run more instances than the template
// declares.
func (e *Estimator) Estimate(templates map[string]*cfn.Template,
	costHints map[string]int) *Estimate {

	estimate := &Estimate{}
	unmapped := map[string]bool{}
	countsByType := map[string]int{}
	ratesByType := map[string]float64{}

	templateIds := make([]string, 0)
	for id := range templates {
		templateIds = append(templateIds, id)
	}
	sort.Strings(templateIds)

	for _, templateId := range templateIds {
		templateEstimate := TemplateEstimate{TemplateId: templateId}

		for _, resource := range templates[templateId].SortedResources() {
			resourceEstimate := ResourceEstimate{
				LogicalId:    resource.LogicalId,
				ResourceType: resource.Type,
			}

			mapper, ok := e.mappers[resource.Type]
			if ok {
				resourceEstimate.HourlyUSD = mapper(resource)
				resourceEstimate.Mapped = true
				countsByType[resource.Type]++
				ratesByType[resource.Type] = resourceEstimate.HourlyUSD
			} else {
				unmapped[resource.Type] = true
			}

			templateEstimate.HourlyUSD += resourceEstimate.HourlyUSD
			templateEstimate.Resources = append(templateEstimate.Resources,
				resourceEstimate)
		}

		estimate.HourlyUSD += templateEstimate.HourlyUSD
		estimate.Templates = append(estimate.Templates, templateEstimate)
	}

	// apply hint overrides: scale by the difference between the declared
	// and hinted counts at the last seen per-unit rate for the type
	hintedTypes := make([]string, 0)
	for hintedType := range costHints {
		hintedTypes = append(hintedTypes, hintedType)
	}
	sort.Strings(hintedTypes)

	for _, hintedType := range hintedTypes {
		rate, ok := ratesByType[hintedType]
		if !ok {
			if mapper, ok := e.mappers[hintedType]; ok {
				rate = mapper(cfn.Resource{Type: hintedType})
			} else {
				unmapped[hintedType] = true
				continue
			}
		}
		estimate.HourlyUSD += float64(costHints[hintedType]-countsByType[hintedType]) * rate
	}

	for unmappedType := range unmapped {
		estimate.UnmappedTypes = append(estimate.UnmappedTypes, unmappedType)
	}
	sort.Strings(estimate.UnmappedTypes)

	return estimate
}

// Total cost over a session's TTL, rounded up to whole hours
func SessionTotalUSD(hourlyUSD float64, ttl time.Duration) float64 {
	hours := ttl.Hours()
	wholeHours := int(hours)
	if hours > float64(wholeHours) {
		wholeHours++
	}
	return hourlyUSD * float64(wholeHours)
}

// Checks the estimate against the configured budget and returns an error
// naming every limit it breaks
func CheckBudget(estimate *Estimate, budget config.BudgetConf,
	ttl time.Duration) error {

	violations := make([]string, 0)

	if budget.MaxHourly > 0 && estimate.HourlyUSD > budget.MaxHourly {
		violations = append(violations, fmt.Sprintf(
			"hourly rate %s exceeds the %s limit", FormatUSD(estimate.HourlyUSD),
			FormatUSD(budget.MaxHourly)))
	}

	total := SessionTotalUSD(estimate.HourlyUSD, ttl)
	if budget.MaxSession > 0 && total > budget.MaxSession {
		violations = append(violations, fmt.Sprintf(
			"session total %s over %s exceeds the %s limit", FormatUSD(total),
			ttl, FormatUSD(budget.MaxSession)))
	}

	if len(violations) > 0 {
		return errors.New(fmt.Sprintf("Estimate is over budget: %s",
			strings.Join(violations, "; ")))
	}

	return nil
}

// Renders a dollar amount for humans, e.g. "$1,234.56"
func FormatUSD(amount float64) string {
	return fmt.Sprintf("$%s", humanize.CommafWithDigits(amount, 2))
}
