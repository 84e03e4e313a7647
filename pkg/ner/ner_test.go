package ner_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/ner"
)

const samplePrescription = `MEDICAL CENTRE
824 14th Street
New York, NY 91743, USA
Name John Smith     Age 34
Address 162 Example St, NY   Date 09-11-12
RX
Betaloc 100mg - 1 tab BID
Dorzolamidum 10 mg - 1 tab BID
Cimetidine 50 mg - 2 tabs TID
Oxprelel 50m9 - 1 tab QD
Dr. Steve Johnson
REFILL 0 1 2 3 4 5 PRN`

func TestExtractEntities_SamplePrescription(t *testing.T) {
	got := ner.ExtractEntities(samplePrescription)

	want := []models.Medication{
		{Name: "Betaloc", Dose: "100 mg", Freq: "BID", FreqExpanded: "Twice daily", Route: "Oral (Tablet)", Raw: "Betaloc 100mg - 1 tab BID"},
		{Name: "Dorzolamide", Dose: "10 mg", Freq: "BID", FreqExpanded: "Twice daily", Route: "Oral (Tablet)", Raw: "Dorzolamidum 10 mg - 1 tab BID"},
		{Name: "Cimetidine", Dose: "50 mg", Freq: "TID", FreqExpanded: "Three times daily", Route: "Oral (Tablet)", Raw: "Cimetidine 50 mg - 2 tabs TID"},
		{Name: "Oxprenolol", Dose: "50 mg", Freq: "QD", FreqExpanded: "Once daily", Route: "Oral (Tablet)", Raw: "Oxprelel 50m9 - 1 tab QD"},
	}
	if diff := cmp.Diff(want, got.Medications); diff != "" {
		t.Errorf("medications mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractEntities_EmptyListsSerialize(t *testing.T) {
	got := ner.ExtractEntities("")
	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"medications":[],"symptoms":[],"diet":[]}`, string(b))
}

func TestExtractEntities_Deduplicates(t *testing.T) {
	text := "Paracetamol 500 mg TID\nparacetamol 500mg tid\nParacetamol 650 mg TID"
	meds := ner.ExtractEntities(text).Medications
	require.Len(t, meds, 2)
	assert.Equal(t, "500 mg", meds[0].Dose)
	assert.Equal(t, "650 mg", meds[1].Dose)
}

func TestExtractEntities_SymptomsAndDiet(t *testing.T) {
	ents := ner.ExtractEntities("I have had a FEVER and headache since Monday, drinking soup only.")
	assert.Equal(t, []string{"fever", "headache"}, ents.Symptoms)
	assert.Equal(t, []string{"soup"}, ents.Diet)
	assert.Empty(t, ents.Medications)
}

func TestParseLine(t *testing.T) {
	r := ner.New()

	tests := []struct {
		name string
		line string
		ok   bool
		want models.Medication
	}{
		{
			name: "fuzzy match",
			line: "Amoxicilin 250 mg cap TID",
			ok:   true,
			want: models.Medication{Name: "Amoxicillin", Dose: "250 mg", Freq: "TID", FreqExpanded: "Three times daily", Route: "Oral", Raw: "Amoxicilin 250 mg cap TID"},
		},
		{
			name: "injection route",
			line: "Heparin 5000 units inj SOS",
			ok:   true,
			want: models.Medication{Name: "Heparin", Dose: "5000 units", Freq: "SOS", FreqExpanded: "If necessary", Route: "Injection", Raw: "Heparin 5000 units inj SOS"},
		},
		{
			name: "hourly frequency kept verbatim",
			line: "Ibuprofen 400 mg q6h",
			ok:   true,
			want: models.Medication{Name: "Ibuprofen", Dose: "400 mg", Freq: "Q6H", FreqExpanded: "Q6H", Route: "Oral", Raw: "Ibuprofen 400 mg q6h"},
		},
		{
			name: "unknown drug is title cased",
			line: "qqqqq 5 mg OD",
			ok:   true,
			want: models.Medication{Name: "Qqqqq", Dose: "5 mg", Freq: "OD", FreqExpanded: "Once daily", Route: "Oral", Raw: "qqqqq 5 mg OD"},
		},
		{name: "no instruction", line: "Paracetamol", ok: false},
		{name: "signature", line: "Dr. Steve Johnson", ok: false},
		{name: "rx marker", line: "Rx", ok: false},
		{name: "address with comma", line: "Flat 4, Green Park", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Oxprelel 50m9 - 1 tab QD", "Oxprelel 50mg - 1 tab QD"},
		{"Aspirin 75 rng • 1ab OD", "Aspirin 75 mg - 1 tab OD"},
		{"Metformin 5O0 mg  BD", "Metformin 500 mg BD"},
		{"Losartan 5l0 mg | tab", "Losartan 510 mg 1 tab"},
		{"Prednisone 1Z5 mg", "Prednisone 125 mg"},
		{"Dose 1O1O1", "Dose 10101"},
		{"  Cetirizine   10 mg  ", "Cetirizine 10 mg"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ner.NormalizeLine(tt.in))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	r := ner.New(
		ner.WithMedications("Ondansetron"),
		ner.WithAliases(map[string]string{"PCM": "Paracetamol"}),
	)

	assert.Equal(t, "Betaloc", r.Canonicalize("betsloe"))
	assert.Equal(t, "Paracetamol", r.Canonicalize("pcm"))
	assert.Equal(t, "Omeprazole", r.Canonicalize("OMEPRAZOLE."))
	assert.Equal(t, "Paracetamol", r.Canonicalize("Paracetamo"))
	assert.Equal(t, "Ondansetron", r.Canonicalize("ondansetron"))
	assert.Equal(t, "Metformin", r.Canonicalize("xr-metformin"))
	assert.Equal(t, "Zz Top", r.Canonicalize("zz top"))
	assert.Contains(t, r.CanonicalNames(), "Ondansetron")
}

func TestLooksLikeAdminText(t *testing.T) {
	assert.True(t, ner.LooksLikeAdminText(""))
	assert.True(t, ner.LooksLikeAdminText("City Hospital"))
	assert.True(t, ner.LooksLikeAdminText("12/4"))
	assert.False(t, ner.LooksLikeAdminText("Atorvastatin 20 mg HS"))
}

func TestParseLine_UnicodeText(t *testing.T) {
	r := ner.New()

	tests := []struct {
		name string
		line string
		dose string
		freq string
	}{
		{name: "no-break spaces collapse", line: "Ibuprofen 400\u00a0\u00a0mg BD", dose: "400 mg", freq: "BD"},
		{name: "arabic-indic digits", line: "Aspirin ١٠٠ mg OD", dose: "١٠٠ mg", freq: "OD"},
		{name: "accented letter is a word rune", line: "éOD café 10 mg", dose: "10 mg", freq: ""},
		{name: "unit glued to a letter", line: "Cetirizine 10 mgx OD", dose: "", freq: "OD"},
		{name: "percent needs a following word rune", line: "Betadine 5 %gargle TID", dose: "5 %", freq: "TID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.ParseLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.dose, got.Dose)
			assert.Equal(t, tt.freq, got.Freq)
			assert.Equal(t, tt.line, got.Raw)
		})
	}
}

func TestExtractMedications_LineBoundaries(t *testing.T) {
	for _, sep := range []string{"\n", "\r\n", "\v", "\f", "\x1c", "\x1e", "\u0085", "\u2028", "\u2029"} {
		t.Run(fmt.Sprintf("%U", []rune(sep)[0]), func(t *testing.T) {
			meds := ner.New().ExtractMedications("Paracetamol 500 mg TID" + sep + "Ibuprofen 400 mg BD")
			require.Len(t, meds, 2)
			assert.Equal(t, "Paracetamol", meds[0].Name)
			assert.Equal(t, "Ibuprofen", meds[1].Name)
		})
	}
}

func TestCanonicalize_TitleCaseFollowsCasedRunes(t *testing.T) {
	r := ner.New()
	assert.Equal(t, "头痛Zzq", r.Canonicalize("头痛zzq"))
	assert.Equal(t, "50Mg Tab", r.Canonicalize("50mg tab"))
}
