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

// Package manager orchestrates the session lifecycle: validation, cost
// checks, concurrent provisioning, cleanup and expiry sweeps.
package manager

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/certlab/labman/internal/pkg/cfn"
	"github.com/certlab/labman/internal/pkg/cleaner"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/certlab/labman/internal/pkg/constants"
	"github.com/certlab/labman/internal/pkg/convert"
	"github.com/certlab/labman/internal/pkg/cost"
	"github.com/certlab/labman/internal/pkg/dag"
	"github.com/certlab/labman/internal/pkg/hooks"
	"github.com/certlab/labman/internal/pkg/lab"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/provisioner"
	"github.com/certlab/labman/internal/pkg/registry"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/certlab/labman/internal/pkg/sessionstore"
	"github.com/certlab/labman/internal/pkg/structs"
	"github.com/certlab/labman/internal/pkg/templater"
	"github.com/certlab/labman/internal/pkg/validate"
	"github.com/certlab/labman/internal/pkg/vars"
	"github.com/pkg/errors"
)

type Manager struct {
	catalog     *lab.Catalog
	store       sessionstore.Store
	provisioner provisioner.Provisioner
	cleaner     *cleaner.Cleaner
	validator   *validate.Validator
	estimator   *cost.Estimator
	conf        *config.Conf
}

func New(catalog *lab.Catalog, store sessionstore.Store,
	provisionerImpl provisioner.Provisioner, cleanerObj *cleaner.Cleaner,
	conf *config.Conf) *Manager {

	return &Manager{
		catalog:     catalog,
		store:       store,
		provisioner: provisionerImpl,
		cleaner:     cleanerObj,
		validator:   validate.New(conf.Validation),
		estimator:   cost.NewEstimator(),
		conf:        conf,
	}
}

type StartOptions struct {
	LabId string
	Owner string
	// zero means use the lab's TTL, falling back to the configured default
	Ttl time.Duration
	// extra vars files merged over the lab's vars, later files winning
	VarsFiles []string
	// skip persistence and hooks side effects
	DryRun bool
	// proceed despite validation errors or a blown budget
	Force bool
}

// Starts a lab session: validates the lab's templates, checks the estimate
// against the budget, then provisions every stack respecting template
// dependencies. Returns the session in its final state along with any
// provisioning error.
func (m *Manager) Start(ctx context.Context, options StartOptions) (*session.Session, error) {
	labObj, err := m.catalog.Get(options.LabId)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ttl := options.Ttl
	if ttl == 0 {
		ttl = labObj.Ttl()
	}
	if ttl == 0 && m.conf.Sessions.DefaultTtl != "" {
		ttl, err = time.ParseDuration(m.conf.Sessions.DefaultTtl)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid default ttl '%s'",
				m.conf.Sessions.DefaultTtl)
		}
	}
	if ttl <= 0 {
		return nil, errors.New(fmt.Sprintf("Lab '%s' has no TTL and no default "+
			"is configured. Pass one with --ttl.", options.LabId))
	}

	region := labObj.Region()
	if region == "" {
		region = m.conf.Region
	}

	labVars, err := m.labVars(labObj, options.VarsFiles)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// pre-provision render: outputs aren't known yet so templates are
	// rendered with vars only
	parsed, err := m.parseTemplates(labObj, nil, labVars)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = m.validateTemplates(labObj, parsed, options.Force)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	estimate := m.estimator.Estimate(parsed, labObj.CostHints())
	for _, unmapped := range estimate.UnmappedTypes {
		log.Logger.Warnf("No cost mapper for resource type '%s'... its cost "+
			"isn't included in the estimate", unmapped)
	}

	err = cost.CheckBudget(estimate, m.conf.Budget, ttl)
	if err != nil {
		if !options.Force {
			return nil, errors.WithStack(err)
		}
		log.Logger.Warnf("%v. Proceeding anyway because --force was given", err)
	}

	log.Logger.Infof("Estimated cost: %s/hour, %s over %s", cost.FormatUSD(
		estimate.HourlyUSD), cost.FormatUSD(cost.SessionTotalUSD(
		estimate.HourlyUSD, ttl)), ttl)

	sess := session.New(labObj.Id(), options.Owner, region, ttl)
	sess.HourlyCostUSD = estimate.HourlyUSD

	err = m.save(ctx, sess, options.DryRun)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = sess.TransitionTo(session.StateProvisioning, "")
	if err != nil {
		return sess, errors.WithStack(err)
	}
	err = m.save(ctx, sess, options.DryRun)
	if err != nil {
		return sess, errors.WithStack(err)
	}

	hookRunner := &hooks.Runner{
		Dir:     labObj.Dir(),
		EnvVars: m.hookEnv(sess),
		DryRun:  options.DryRun,
	}

	err = hookRunner.Run(labObj.Hooks().Pre)
	if err == nil {
		err = m.provision(ctx, labObj, sess, labVars)
	}
	if err == nil {
		hookRunner.EnvVars = m.hookEnv(sess)
		err = hookRunner.Run(labObj.Hooks().Post)
	}

	if err != nil {
		transitionErr := sess.TransitionTo(session.StateFailed, err.Error())
		if transitionErr != nil {
			log.Logger.Errorf("Error recording failure on session '%s': %v",
				sess.Id, transitionErr)
		}
		if saveErr := m.save(ctx, sess, options.DryRun); saveErr != nil {
			log.Logger.Errorf("Error saving failed session '%s': %v", sess.Id,
				saveErr)
		}
		return sess, errors.WithStack(err)
	}

	err = sess.TransitionTo(session.StateActive, "")
	if err != nil {
		return sess, errors.WithStack(err)
	}
	err = m.save(ctx, sess, options.DryRun)
	if err != nil {
		return sess, errors.WithStack(err)
	}

	log.Logger.Infof("Session '%s' is active until %s", sess.ShortId(),
		sess.ExpiresAt.Format(time.RFC3339))

	return sess, nil
}

// Provisions every stack in dependency order, collecting outputs into the
// registry so dependent templates can reference them
func (m *Manager) provision(ctx context.Context, labObj *lab.Lab,
	sess *session.Session, labVars map[string]interface{}) error {

	dagObj, err := dag.Create(labObj.Templates(), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	reg := registry.New()
	var mutex sync.Mutex

	numWorkers := m.conf.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	err = dagObj.Execute(constants.DagActionProvision, numWorkers,
		func(node dag.NamedNode) error {
			template := node.Template()

			spec, err := m.renderSpec(labObj, sess, template, reg, labVars)
			if err != nil {
				return errors.WithStack(err)
			}

			outputs, err := m.provisioner.Provision(ctx, spec)
			if err != nil {
				return errors.WithStack(err)
			}

			for key, value := range outputs {
				reg.SetString(strings.Join([]string{constants.RegistryKeyOutputs,
					template.Id, key}, ":"), value)
			}

			mutex.Lock()
			defer mutex.Unlock()
			sess.StackNames[template.Id] = spec.StackName
			for key, value := range outputs {
				sess.Outputs[fmt.Sprintf("%s:%s", template.Id, key)] = value
			}

			return nil
		})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Renders a template's body and parameters into a stack spec carrying the
// session's isolation tags
func (m *Manager) renderSpec(labObj *lab.Lab, sess *session.Session,
	template structs.Template, reg *registry.Registry,
	labVars map[string]interface{}) (provisioner.StackSpec, error) {

	spec := provisioner.StackSpec{}

	templateVars, err := m.templateVars(labVars, sess, reg)
	if err != nil {
		return spec, errors.WithStack(err)
	}

	var bodyBuf bytes.Buffer
	err = templater.RenderFile(labObj.TemplatePath(template), &bodyBuf, templateVars)
	if err != nil {
		return spec, errors.WithStack(err)
	}

	parameters := map[string]string{}
	for key, value := range template.Parameters {
		rendered, err := templater.Render(value, templateVars)
		if err != nil {
			return spec, errors.Wrapf(err, "Error rendering parameter '%s' of "+
				"template '%s'", key, template.Id)
		}
		parameters[key] = rendered
	}

	spec.StackName = sess.StackName(template.Id)
	spec.TemplateBody = bodyBuf.String()
	spec.Parameters = parameters
	spec.Capabilities = template.Capabilities
	spec.Tags = map[string]string{
		constants.TagSessionID: sess.Id,
		constants.TagLabID:     sess.LabId,
		constants.TagOwner:     sess.Owner,
		constants.TagExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
	}

	return spec, nil
}

// The lab's vars with any extra vars files merged over them, later files
// taking precedence
func (m *Manager) labVars(labObj *lab.Lab,
	varsFiles []string) (map[string]interface{}, error) {

	merged := convert.MapStringStringToMapStringInterface(labObj.Vars())
	err := vars.MergePaths(&merged, varsFiles...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return merged, nil
}

// The variables available inside template bodies and parameters. Var values
// can themselves be templates referencing the session, stack outputs or
// other vars, so the whole map is templated until it stops changing.
func (m *Manager) templateVars(labVars map[string]interface{},
	sess *session.Session, reg *registry.Registry) (map[string]interface{}, error) {

	templateVars := map[string]interface{}{
		"vars":    labVars,
		"outputs": nestedOutputs(reg),
		"session": map[string]interface{}{
			"id":       sess.Id,
			"short_id": sess.ShortId(),
			"lab_id":   sess.LabId,
			"owner":    sess.Owner,
			"region":   sess.Region,
		},
	}

	templateVars, err := templater.IterativelyTemplate(templateVars)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return templateVars, nil
}

// Renders and parses every template of the lab. When reg is nil an empty
// registry is used, i.e. output references render to placeholders.
func (m *Manager) parseTemplates(labObj *lab.Lab, reg *registry.Registry,
	labVars map[string]interface{}) (map[string]*cfn.Template, error) {

	if reg == nil {
		reg = registry.New()
	}

	// a throwaway session gives pre-provision renders the same variable
	// shape real renders see
	placeholder := session.New(labObj.Id(), "preview", labObj.Region(), time.Hour)
	templateVars, err := m.templateVars(labVars, placeholder, reg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	parsed := map[string]*cfn.Template{}
	for _, template := range labObj.Templates() {
		var bodyBuf bytes.Buffer
		err := templater.RenderFile(labObj.TemplatePath(template), &bodyBuf,
			templateVars)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		parsedTemplate, err := cfn.ParseTemplate(bodyBuf.Bytes())
		if err != nil {
			return nil, errors.Wrapf(err, "Error parsing template '%s' of lab '%s'",
				template.Id, labObj.Id())
		}

		parsed[template.Id] = parsedTemplate
	}

	return parsed, nil
}

// Renders a lab's templates without provisioning anything, e.g. for
// previewing. Output references render against an empty registry.
func (m *Manager) RenderTemplates(labId string,
	varsFiles []string) (map[string]string, error) {

	labObj, err := m.catalog.Get(labId)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	labVars, err := m.labVars(labObj, varsFiles)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	placeholder := session.New(labObj.Id(), "preview", labObj.Region(), time.Hour)
	templateVars, err := m.templateVars(labVars, placeholder, registry.New())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	rendered := map[string]string{}
	for _, template := range labObj.Templates() {
		var bodyBuf bytes.Buffer
		err := templater.RenderFile(labObj.TemplatePath(template), &bodyBuf,
			templateVars)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		rendered[template.Id] = bodyBuf.String()
	}

	return rendered, nil
}

// Estimates a lab's cost without starting a session. Returns the estimate
// and the TTL the total is calculated over.
func (m *Manager) EstimateLab(labId string, ttl time.Duration,
	varsFiles []string) (*cost.Estimate, time.Duration, error) {

	labObj, err := m.catalog.Get(labId)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	if ttl == 0 {
		ttl = labObj.Ttl()
	}
	if ttl == 0 && m.conf.Sessions.DefaultTtl != "" {
		ttl, err = time.ParseDuration(m.conf.Sessions.DefaultTtl)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "Invalid default ttl '%s'",
				m.conf.Sessions.DefaultTtl)
		}
	}
	if ttl <= 0 {
		return nil, 0, errors.New(fmt.Sprintf("Lab '%s' has no TTL and no "+
			"default is configured. Pass one with --ttl.", labId))
	}

	labVars, err := m.labVars(labObj, varsFiles)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	parsed, err := m.parseTemplates(labObj, nil, labVars)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return m.estimator.Estimate(parsed, labObj.CostHints()), ttl, nil
}

func (m *Manager) validateTemplates(labObj *lab.Lab,
	parsed map[string]*cfn.Template, force bool) error {

	failures := make([]string, 0)

	for _, template := range labObj.Templates() {
		findings := m.validator.Validate(parsed[template.Id])
		for _, finding := range findings {
			if finding.Severity == validate.SeverityError {
				failures = append(failures, fmt.Sprintf("%s: %s", template.Id,
					finding.String()))
			} else {
				log.Logger.Warnf("Template '%s': %s", template.Id, finding.String())
			}
		}
	}

	if len(failures) > 0 {
		message := fmt.Sprintf("Validation failed for lab '%s':\n  %s",
			labObj.Id(), strings.Join(failures, "\n  "))
		if !force {
			return errors.New(message)
		}
		log.Logger.Warnf("%s\nProceeding anyway because --force was given", message)
	}

	return nil
}

func (m *Manager) hookEnv(sess *session.Session) map[string]string {
	env := map[string]string{
		"LABMAN_SESSION_ID": sess.Id,
		"LABMAN_LAB_ID":     sess.LabId,
		"LABMAN_OWNER":      sess.Owner,
		"LABMAN_REGION":     sess.Region,
	}
	for key, value := range sess.Outputs {
		env[outputEnvName(key)] = value
	}
	return env
}

// "network:VpcId" -> "LABMAN_OUTPUT_NETWORK_VPCID"
func outputEnvName(key string) string {
	cleaned := strings.NewReplacer(":", "_", "-", "_", ".", "_").Replace(key)
	return "LABMAN_OUTPUT_" + strings.ToUpper(cleaned)
}

func (m *Manager) save(ctx context.Context, sess *session.Session,
	dryRun bool) error {
	if dryRun {
		return nil
	}
	return m.store.Save(ctx, sess)
}

// Builds a nested outputs map from the registry's colon-namespaced keys,
// e.g. 'outputs:network:VpcId' -> outputs["network"]["VpcId"]
func nestedOutputs(reg *registry.Registry) map[string]interface{} {
	outputs := map[string]interface{}{}

	for key, value := range reg.AsMap() {
		parts := strings.Split(key, ":")
		if len(parts) != 3 || parts[0] != constants.RegistryKeyOutputs {
			continue
		}

		byTemplate, ok := outputs[parts[1]].(map[string]interface{})
		if !ok {
			byTemplate = map[string]interface{}{}
			outputs[parts[1]] = byTemplate
		}
		byTemplate[parts[2]] = value
	}

	return outputs
}
