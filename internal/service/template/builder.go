package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
	"github.com/pawline/notify-api/pkg/errors"
	"github.com/pawline/notify-api/pkg/logger"
)

// Message variants, selected by how much the system knows about the pet.
const (
	VariantFull  = "full"  // pet known, prior-visit hospital recorded
	VariantNew   = "new"   // pet known, first visit
	VariantBasic = "basic" // anonymous submission
)

const (
	templateFull  = "emergency_full"
	templateNew   = "emergency_new"
	templateBasic = "emergency_basic"

	languageZhHK = "zh_hk"
)

// Content is a channel-agnostic rendering of one emergency: the template
// reference plus ordered parameters for the chat-template channel, and a
// locale-correct fallback text for freeform and email sends.
type Content struct {
	Variant      string
	TemplateName string
	ParamCount   int
	Params       []string
	FallbackText string
	Subject      string
}

type fieldLabel struct {
	en string
	zh string
}

var (
	unknownValue = fieldLabel{en: "Unknown", zh: "未知"}

	labelPriorHospital = fieldLabel{en: "Prior hospital", zh: "曾就診醫院"}
	labelPetName       = fieldLabel{en: "Pet name", zh: "寵物名稱"}
	labelSpecies       = fieldLabel{en: "Species", zh: "物種"}
	labelBreed         = fieldLabel{en: "Breed", zh: "品種"}
	labelAge           = fieldLabel{en: "Age", zh: "年齡"}
	labelWeight        = fieldLabel{en: "Weight", zh: "體重"}
	labelSymptom       = fieldLabel{en: "Symptom", zh: "症狀"}
	labelMedicalNotes  = fieldLabel{en: "Medical notes", zh: "病歷備註"}
	labelLocation      = fieldLabel{en: "Location", zh: "位置"}
	labelContactName   = fieldLabel{en: "Contact name", zh: "聯絡人"}
	labelContactPhone  = fieldLabel{en: "Contact phone", zh: "聯絡電話"}

	subjectLine = fieldLabel{en: "Emergency case", zh: "緊急求助"}
)

func (l fieldLabel) in(language string) string {
	if language == languageZhHK {
		return l.zh
	}
	return l.en
}

// Builder produces message content for an emergency in a target language.
type Builder struct {
	emergencies repository.EmergencyRepository
	hospitals   repository.HospitalRepository
	logger      *logger.Logger
}

func NewBuilder(emergencies repository.EmergencyRepository, hospitals repository.HospitalRepository, logger *logger.Logger) *Builder {
	return &Builder{
		emergencies: emergencies,
		hospitals:   hospitals,
		logger:      logger,
	}
}

// Build renders the emergency into a Content. It returns a not-found error
// when the emergency record itself is gone; callers must not attempt delivery
// in that case. A missing pet or hospital record only downgrades the variant.
// An empty language falls back to the emergency's own submission language.
func (b *Builder) Build(ctx context.Context, emergencyID uuid.UUID, language string) (*Content, error) {
	emergency, err := b.emergencies.Get(ctx, emergencyID)
	if err != nil {
		return nil, errors.NotFound("emergency", err)
	}

	if language == "" {
		language = emergency.Language
	}
	language = normalizeLanguage(language)

	var pet *model.Pet
	if emergency.PetID != nil {
		pet, err = b.emergencies.GetPet(ctx, *emergency.PetID)
		if err != nil {
			b.logger.Warn("pet record missing, building anonymous variant",
				"emergency_id", emergencyID.String(), "pet_id", emergency.PetID.String())
			pet = nil
		}
	}

	switch {
	case pet != nil && pet.PriorVisitHospitalID != nil:
		return b.buildFull(ctx, emergency, pet, language), nil
	case pet != nil:
		return b.buildNew(emergency, pet, language), nil
	default:
		return b.buildBasic(emergency, language), nil
	}
}

func (b *Builder) buildFull(ctx context.Context, e *model.Emergency, pet *model.Pet, language string) *Content {
	priorName := ""
	if hospital, err := b.hospitals.Get(ctx, *pet.PriorVisitHospitalID); err == nil {
		priorName = hospital.Name
	}

	fields := []field{
		{labelPriorHospital, priorName},
	}
	fields = append(fields, petFields(e, pet)...)
	return newContent(VariantFull, templateFull, language, e, fields)
}

func (b *Builder) buildNew(e *model.Emergency, pet *model.Pet, language string) *Content {
	return newContent(VariantNew, templateNew, language, e, petFields(e, pet))
}

func (b *Builder) buildBasic(e *model.Emergency, language string) *Content {
	fields := []field{
		{labelSpecies, e.Species},
		{labelBreed, e.Breed},
		{labelAge, e.Age},
		{labelSymptom, e.Symptom},
		{labelLocation, e.Location},
		{labelContactName, e.ContactName},
		{labelContactPhone, e.ContactPhone},
	}
	return newContent(VariantBasic, templateBasic, language, e, fields)
}

type field struct {
	label fieldLabel
	value string
}

// petFields is the shared tail of the full and new variants: pet identity and
// the emergency details.
func petFields(e *model.Emergency, pet *model.Pet) []field {
	return []field{
		{labelPetName, pet.Name},
		{labelSpecies, firstNonEmpty(pet.Species, e.Species)},
		{labelBreed, firstNonEmpty(pet.Breed, e.Breed)},
		{labelAge, firstNonEmpty(pet.Age, e.Age)},
		{labelWeight, firstNonEmpty(pet.Weight, e.Weight)},
		{labelSymptom, e.Symptom},
		{labelMedicalNotes, e.MedicalNotes},
		{labelLocation, e.Location},
		{labelContactName, e.ContactName},
		{labelContactPhone, e.ContactPhone},
	}
}

func newContent(variant, templateName, language string, e *model.Emergency, fields []field) *Content {
	if language == languageZhHK {
		templateName += "_zh_hk"
	}

	params := make([]string, 0, len(fields))
	lines := make([]string, 0, len(fields)+1)

	subject := fmt.Sprintf("%s: %s", subjectLine.in(language), valueOrUnknown(e.Species, language))
	lines = append(lines, subject)

	for _, f := range fields {
		v := valueOrUnknown(f.value, language)
		params = append(params, v)
		lines = append(lines, fmt.Sprintf("%s: %s", f.label.in(language), v))
	}

	return &Content{
		Variant:      variant,
		TemplateName: templateName,
		ParamCount:   len(fields),
		Params:       params,
		FallbackText: strings.Join(lines, "\n"),
		Subject:      subject,
	}
}

// valueOrUnknown renders the language-correct placeholder for absent values;
// no field is ever blank.
func valueOrUnknown(v, language string) string {
	if strings.TrimSpace(v) == "" {
		return unknownValue.in(language)
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalizeLanguage(language string) string {
	switch strings.ToLower(strings.ReplaceAll(language, "-", "_")) {
	case "zh_hk", "zh":
		return languageZhHK
	default:
		return "en"
	}
}

// LanguageFromTemplate recovers the target language from the template naming
// convention, for retries that rebuild content from a persisted reference.
func LanguageFromTemplate(templateName string) string {
	if strings.HasSuffix(templateName, "_zh_hk") {
		return languageZhHK
	}
	return "en"
}
