package form

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"store_admin/internal/events"
	"store_admin/internal/gateway"
	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
	"store_admin/internal/pkg/imaging"
	"store_admin/internal/pkg/logger"
)

//go:generate mockgen -source=drawer.go -destination=mocks/mock_mutator.go -package=mocks

// Mutator performs one upstream write.
type Mutator interface {
	Mutate(ctx context.Context, m gateway.Mutation) (*gateway.Result, error)
}

// Mode says what an open drawer will do on submit.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Draft is the drawer's local copy of the entity plus images staged for upload.
type Draft struct {
	Values Values
	Images map[string]*imaging.Image
}

// State is what the drawer shows.
type State struct {
	Open        bool                `json:"open"`
	Mode        Mode                `json:"mode,omitempty"`
	Resource    string              `json:"resource"`
	EntityID    string              `json:"entityId,omitempty"`
	Values      Values              `json:"values,omitempty"`
	Previews    map[string]string   `json:"previews,omitempty"`
	Submitting  bool                `json:"submitting"`
	Error       string              `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// Options tune a Drawer.
type Options struct {
	Image imaging.Options
	Log   *logger.Logger
}

// Drawer edits one draft of one collection at a time.
type Drawer struct {
	schema    Schema
	mutator   Mutator
	publisher events.Publisher
	image     imaging.Options
	log       *logger.Logger

	mu          sync.Mutex
	open        bool
	mode        Mode
	entityID    string
	draft       Draft
	generation  uint64
	submitting  bool
	err         error
	fieldErrors map[string][]string
}

func NewDrawer(schema Schema, mutator Mutator, publisher events.Publisher, opts Options) *Drawer {
	if opts.Image.MaxWidth <= 0 {
		opts.Image = imaging.DefaultOptions
	}
	return &Drawer{
		schema:    schema,
		mutator:   mutator,
		publisher: publisher,
		image:     opts.Image,
		log:       opts.Log.Component("drawer", zap.String("resource", schema.Resource)),
	}
}

// OpenCreate opens an empty draft seeded with field defaults.
func (d *Drawer) OpenCreate() {
	values := Values{}
	for _, f := range d.schema.Fields {
		if f.Editable {
			values[f.Name] = copyValue(f.Default)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	d.open, d.mode = true, ModeCreate
	d.draft.Values = values
}

// OpenEdit seeds the draft from entity, translating server field names into
// local ones and unescaping values the server double-encoded.
func (d *Drawer) OpenEdit(entity models.Entity) error {
	if entity.Resource() != d.schema.Resource {
		return apierr.ClientInputErr(fmt.Sprintf("Cannot edit a %s in the %s drawer.", entity.Resource(), d.schema.Resource), nil)
	}
	server, err := models.ToValues(entity)
	if err != nil {
		return apierr.ClientInputErr("The record could not be loaded into the form.", nil)
	}

	values := Values{}
	for _, f := range d.schema.Fields {
		v, ok := server[f.Source]
		if !ok {
			v = copyValue(f.Default)
		}
		values[f.Name] = unescapeField(f, v)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	d.open, d.mode = true, ModeEdit
	d.entityID = entity.Key()
	d.draft.Values = values
	return nil
}

// unescapeField undoes server double-encoding without changing the shape a
// field expects: only list fields may turn an encoded string into an array.
func unescapeField(f Field, v any) any {
	if f.Kind == KindList {
		return models.Unescape(v)
	}
	if s, ok := v.(string); ok {
		return models.UnescapeText(s)
	}
	return v
}

// Set changes one editable draft field.
func (d *Drawer) Set(name string, value any) error {
	return d.SetValues(Values{name: value})
}

// SetValues changes several editable draft fields at once. Every field is
// checked first; if any is rejected none is applied and the error lists all
// rejected fields.
func (d *Drawer) SetValues(values Values) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var first *apierr.Error
	fields := map[string][]string{}
	for _, name := range names {
		err := d.checkEditable(name, values[name])
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if msgs, ok := err.Fields[name]; ok {
			fields[name] = msgs
		} else {
			fields[name] = []string{err.Message}
		}
	}
	if first != nil {
		return apierr.ClientInputErr(first.Message, fields)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	for _, name := range names {
		d.draft.Values[name] = values[name]
		delete(d.fieldErrors, name)
	}
	return nil
}

func (d *Drawer) checkEditable(name string, value any) *apierr.Error {
	f, ok := d.schema.Field(name)
	if !ok || !f.Editable || f.Kind == KindImage {
		return apierr.ClientInputErr(fmt.Sprintf("Field %q cannot be edited.", name), nil)
	}
	return checkKind(f, value)
}

// StageImage compresses the image read from r and attaches it to field.
// Nothing is staged when compression fails.
func (d *Drawer) StageImage(name, fileName string, r io.Reader) error {
	f, ok := d.schema.Field(name)
	if !ok || f.Kind != KindImage {
		return apierr.ClientInputErr(fmt.Sprintf("Field %q does not take an image.", name), nil)
	}
	d.mu.Lock()
	open := d.open
	d.mu.Unlock()
	if !open {
		return errNotOpen
	}

	img, err := imaging.Compress(r, fileName, d.image)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return errNotOpen
	}
	if d.draft.Images == nil {
		d.draft.Images = map[string]*imaging.Image{}
	}
	d.draft.Images[name] = img
	delete(d.fieldErrors, name)
	return nil
}

// Submit validates the draft and sends exactly one create or update. On
// success the drawer closes and the collection is invalidated; on failure it
// stays open with the error. An auth failure leaves the drawer untouched.
func (d *Drawer) Submit(ctx context.Context) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return errNotOpen
	}
	if d.submitting {
		d.mu.Unlock()
		return apierr.ClientInputErr("The form is already being saved.", nil)
	}
	if fields := d.validateLocked(); len(fields) > 0 {
		err := apierr.ClientInputErr("Please fix the highlighted fields.", fields)
		d.err, d.fieldErrors = err, fields
		d.mu.Unlock()
		return err
	}
	m := d.mutationLocked()
	gen := d.generation
	d.submitting = true
	d.mu.Unlock()

	_, err := d.mutator.Mutate(ctx, m)

	d.mu.Lock()
	current := gen == d.generation
	if current {
		d.submitting = false
	}
	switch {
	case apierr.IsAuth(err):
		d.mu.Unlock()
		return err
	case err != nil:
		if current {
			d.err = err
			d.fieldErrors = d.localFieldErrors(err)
		}
		d.mu.Unlock()
		d.log.Info("submit rejected", zap.String("method", m.Method), zap.Error(err))
		return err
	}
	if current {
		d.resetLocked()
	}
	d.mu.Unlock()

	d.publisher.Publish(events.ResourceChanged{Resource: d.schema.Resource})
	return nil
}

// Cancel discards the draft unconditionally.
func (d *Drawer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

// Draft returns a copy of the current draft.
func (d *Drawer) Draft() Draft {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := Draft{Values: copyValues(d.draft.Values)}
	if len(d.draft.Images) > 0 {
		out.Images = make(map[string]*imaging.Image, len(d.draft.Images))
		for k, v := range d.draft.Images {
			out.Images[k] = v
		}
	}
	return out
}

func (d *Drawer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := State{
		Open:        d.open,
		Mode:        d.mode,
		Resource:    d.schema.Resource,
		EntityID:    d.entityID,
		Values:      copyValues(d.draft.Values),
		Submitting:  d.submitting,
		FieldErrors: d.fieldErrors,
	}
	if len(d.draft.Images) > 0 {
		s.Previews = make(map[string]string, len(d.draft.Images))
		for k, img := range d.draft.Images {
			s.Previews[k] = img.DataURL()
		}
	}
	if d.err != nil {
		s.Error = apierr.PublicMessage(d.err)
	}
	return s
}

func (d *Drawer) resetLocked() {
	d.generation++
	d.open = false
	d.mode = ""
	d.entityID = ""
	d.draft = Draft{}
	d.submitting = false
	d.err = nil
	d.fieldErrors = nil
}

func (d *Drawer) validateLocked() map[string][]string {
	fields := map[string][]string{}
	for _, f := range d.schema.Fields {
		if !f.Editable || !f.Required {
			continue
		}
		if f.Kind == KindImage && d.draft.Images[f.Name] != nil {
			continue
		}
		if isEmpty(d.draft.Values[f.Name]) {
			fields[f.Name] = append(fields[f.Name], fmt.Sprintf("The %s field is required.", f.Name))
		}
	}
	if d.schema.Validate != nil {
		for name, msg := range d.schema.Validate(d.draft.Values) {
			fields[name] = append(fields[name], msg)
		}
	}
	return fields
}

// mutationLocked builds the payload in server field names. Images go out
// only when a new one was staged.
func (d *Drawer) mutationLocked() gateway.Mutation {
	payload := map[string]any{}
	var files []gateway.File
	for _, f := range d.schema.Fields {
		if !f.Editable {
			continue
		}
		if f.Kind == KindImage {
			if img := d.draft.Images[f.Name]; img != nil {
				files = append(files, gateway.File{Field: f.Source, Name: img.FileName, ContentType: img.ContentType, Data: img.Data})
			}
			continue
		}
		payload[f.Source] = d.draft.Values[f.Name]
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Field < files[j].Field })

	if d.mode == ModeEdit {
		return gateway.Update(d.schema.Resource, d.entityID, payload, files...)
	}
	return gateway.Create(d.schema.Resource, payload, files...)
}

func (d *Drawer) localFieldErrors(err error) map[string][]string {
	e, ok := apierr.As(err)
	if !ok || len(e.Fields) == 0 {
		return nil
	}
	out := make(map[string][]string, len(e.Fields))
	for source, msgs := range e.Fields {
		name := d.schema.LocalName(source)
		out[name] = append(out[name], msgs...)
	}
	return out
}

var errNotOpen = apierr.ClientInputErr("The form is not open.", nil)

func checkKind(f Field, v any) *apierr.Error {
	if v == nil {
		return nil
	}
	ok := true
	switch f.Kind {
	case KindText:
		_, ok = v.(string)
	case KindBool:
		_, ok = v.(bool)
	case KindNumber:
		_, ok = numberOf(v)
	case KindList:
		_, ok = v.([]any)
	}
	if !ok {
		return apierr.ClientInputErr(fmt.Sprintf("Field %q expects a %s value.", f.Name, f.Kind), map[string][]string{
			f.Name: {fmt.Sprintf("Expected a %s value.", f.Kind)},
		})
	}
	return nil
}

func copyValues(v Values) Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = copyValue(val)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	}
	return v
}
