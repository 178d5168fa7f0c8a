// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompts holds the fixed Stage-1 digest-extraction and Stage-2
// KVT4-projection prompt templates, ported verbatim in spirit from
// prompts/optimized_prompt.py. Template text before the {EHR_TEXT}
// placeholder must stay byte-stable across a process's lifetime: an LM
// backend serving a prompt cache keys on that byte-identical prefix, so an
// accidental whitespace edit silently defeats cache reuse for every
// in-flight document.
package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EHRPlaceholder is the exact substitution marker both templates share.
const EHRPlaceholder = "{EHR_TEXT}"

// Stage1Digest is the Stage-1 extraction prompt: a free-form clinical
// digest across the nine clusters, used as the source the Stage-2 prompt
// re-projects into strict KVT4 lines.
const Stage1Digest = `## Role
You are an expert clinical NLP extraction engine. Extract a structured
clinical digest from a hospital discharge summary for 30-day readmission
risk prediction.

## CRITICAL: Be EXHAUSTIVE
- Extract every clinically relevant fact, not just the most obvious ones.
- Scan every section: Chief Complaint, History of Present Illness, Past
  Medical History, Medications, Labs, Vitals, Discharge Diagnosis,
  Discharge Condition.
- Do not skip any diagnoses, symptoms, or lab values.

## Output Format
Return a single JSON object with one key per cluster:
DEMOGRAPHICS, VITALS, LABS, PROBLEMS, SYMPTOMS, MEDICATIONS, PROCEDURES,
UTILIZATION, DISPOSITION.
DEMOGRAPHICS/VITALS/LABS/UTILIZATION/DISPOSITION are objects of
keyword -> value. PROBLEMS/SYMPTOMS/MEDICATIONS/PROCEDURES are free text.

## Canonical Keywords (use these exact names)
DEMOGRAPHICS: Age, Sex
VITALS: Heart Rate, Systolic BP, Diastolic BP, Respiratory Rate, Temperature, SpO2, Weight
LABS: Hemoglobin, Hematocrit, WBC, Platelet, Sodium, Potassium, Creatinine, BUN, Glucose, Bicarbonate
UTILIZATION: Prior Admissions 12mo, ED Visits 6mo, Days Since Last Admission, Current Length of Stay
DISPOSITION: Discharge Disposition, Mental Status

## Numeric Fields
VITALS/LABS/UTILIZATION values must be numeric only, no units (e.g. 78, not "78 bpm").
If a value is not stated in the note, omit the key rather than guessing.

## Clinical Note
` + EHRPlaceholder + `

## BEGIN EXTRACTION
`

// Stage2KVT4Lines is the Stage-2 projection prompt: reads the Stage-1
// digest markdown and re-emits it as strict four-field KVT4 lines.
const Stage2KVT4Lines = `## Role
You are an expert clinical NLP extraction engine for 30-day readmission
risk prediction.

## Output Format (STRICT)
Format: CLUSTER|Keyword|Value|Timestamp
Return ONLY fact lines. No headers, no markdown, no explanations, no code
fences. Each line must contain exactly three pipe characters.

## Allowed CLUSTERS (9 total)
DEMOGRAPHICS, VITALS, LABS, PROBLEMS, SYMPTOMS, MEDICATIONS, PROCEDURES, UTILIZATION, DISPOSITION

## Allowed Timestamps
Past, Admission, Discharge, Unknown

## Canonical Keywords (MUST MATCH EXACTLY)
DEMOGRAPHICS: Age (numeric), Sex (male|female)
VITALS: Heart Rate, Systolic BP, Diastolic BP, Respiratory Rate, Temperature, SpO2, Weight
LABS: Hemoglobin, Hematocrit, WBC, Platelet, Sodium, Potassium, Creatinine, BUN, Glucose, Bicarbonate
UTILIZATION: Prior Admissions 12mo, ED Visits 6mo, Days Since Last Admission, Current Length of Stay
DISPOSITION: Discharge Disposition (Home, Home with Services, SNF, Rehab, LTAC, Hospice, AMA), Mental Status (alert, confused, oriented, lethargic)

## Cluster-Specific Rules (STRICT)
- VITALS/LABS/UTILIZATION values MUST be numeric only (no units, no words).
- If BP appears as 120/80, output TWO lines: Systolic BP=120 and Diastolic BP=80, same timestamp.
- PROBLEMS: Value must be "chronic" or "acute". Use Past+chronic for PMH/history; Discharge+acute for discharge diagnosis.
- SYMPTOMS: Value must be yes/no/severe.
- MEDICATIONS: use only the supported keywords (Insulin, Anticoagulation, Opioids, High Risk Medications, Medication Count, New Medications Count, Polypharmacy).
- No duplicates: at most one line per (CLUSTER, Keyword) for objective clusters.

## Clinical Digest
` + EHRPlaceholder + `

## BEGIN EXTRACTION
`

// FingerprintPrefix returns the hex-encoded SHA-256 of the template text
// preceding EHRPlaceholder, used to verify prompt-cache-safe reuse across
// documents: the backend's KV cache keys on this exact prefix, so comparing
// its hash across runs makes a silent template drift visible. The runners do
// not record it in meta_stage1.json or meta_stage2.json.
func FingerprintPrefix(template string) string {
	idx := strings.Index(template, EHRPlaceholder)
	prefix := template
	if idx >= 0 {
		prefix = template[:idx]
	}
	sum := sha256.Sum256([]byte(prefix))
	return hex.EncodeToString(sum[:])
}

// Render substitutes ehrText into template's {EHR_TEXT} placeholder.
func Render(template, ehrText string) string {
	return strings.Replace(template, EHRPlaceholder, ehrText, 1)
}
