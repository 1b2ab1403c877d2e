package prompt

import "prompt-dispatcher/internal/common/errors"

const zeroShotInstruction = `You are a clinical data analyst. Analyze the medical dataset summary provided below and identify correlations between diabetes medications and patient outcomes.

Focus on:
1. Changes in HbA1c and blood glucose after each medication was started.
2. Differences in effectiveness between medications.
3. Patient characteristics (gender, race, ethnicity, diabetes type) associated with better or worse outcomes.
4. Limitations of the data that affect how far the findings can be trusted.

Report your findings as a structured summary with one section per medication, followed by overall conclusions.`

const fewShotInstruction = `You are a clinical data analyst. Your task is to identify correlations between diabetes medications and patient outcomes in a medical dataset summary. Study the worked examples below, then produce an analysis of the same depth and structure for the dataset that follows.`

const chainOfThoughtInstruction = `You are a clinical data analyst. Identify correlations between diabetes medications and patient outcomes in a medical dataset summary. Reason step by step and show your work for every step before giving conclusions:

Step 1. Describe the population: how many patients, the diabetes types present, and the demographic mix.
Step 2. For each medication, collect the HbA1c and blood glucose measurements taken before and after it was started.
Step 3. Compute or read off the mean change and mean percent change per medication, noting the sample size.
Step 4. Compare medications against each other, separating effects that are large and well supported from those based on few patients.
Step 5. Look for patient characteristics that coincide with stronger or weaker responses.
Step 6. State the confounders and data limitations (treatment overlap, short follow-up, missing observations).
Step 7. Summarize the correlations you are confident in and those that need more data.

The following example shows the expected reasoning.`

var fewShotExamples = []Example{
	{
		Input: `| Medication | Count | Mean Change | Mean % Change |
|------------|-------|-------------|---------------|
| metformin hydrochloride 500 MG Oral Tablet | 42 | -0.81 | -10.20% |`,
		Analysis: `Metformin shows a consistent reduction in HbA1c across 42 measurements, with a mean drop of 0.81 points (about 10%). The sample is large enough to treat this as a reliable first-line effect.`,
	},
	{
		Input: `| Medication | Count | Mean Change | Mean % Change |
|------------|-------|-------------|---------------|
| insulin glargine 100 UNT/ML Injectable Solution | 9 | -1.45 | -15.70% |
| sitagliptin 50 MG Oral Tablet | 4 | -0.30 | -3.90% |`,
		Analysis: `Insulin glargine produces the largest HbA1c reduction (1.45 points) but over only 9 measurements, and patients started on insulin usually have more advanced disease. Sitagliptin's small change over 4 measurements is too sparse to support a conclusion.`,
	},
	{
		Input: `## Patient: 3f2a91c0... (anonymized)
- Gender: F
- Diabetes Type: Diabetes mellitus type 2 (disorder)

| Medication | Metric | Before | After | Change | % Change | Days Between |
|------------|--------|--------|-------|--------|----------|-------------|
| metformin hydrochloride 500 MG Oral Tablet | Glucose | 182.00 | 131.00 | -51.00 | -28.02% | 94 |`,
		Analysis: `This patient's fasting glucose fell by 51 mg/dL within about three months of starting metformin, in line with the population-level metformin effect. A single patient cannot separate the drug effect from concurrent lifestyle changes.`,
	},
}

var chainOfThoughtExamples = []Example{
	{
		Input: `| Medication | Count | Mean Change | Mean % Change |
|------------|-------|-------------|---------------|
| metformin hydrochloride 500 MG Oral Tablet | 42 | -0.81 | -10.20% |
| insulin glargine 100 UNT/ML Injectable Solution | 9 | -1.45 | -15.70% |`,
		Analysis: `Step 1: Two medications are reported; patients are type 2 diabetics.
Step 2: Both have HbA1c measurements before and after start.
Step 3: Metformin -0.81 (n=42), insulin glargine -1.45 (n=9).
Step 4: Insulin shows the larger effect but on far fewer measurements; metformin's effect is better supported.
Step 5: No demographic breakdown is available in this excerpt.
Step 6: Insulin is typically added when metformin alone is insufficient, so the groups are not comparable.
Step 7: Metformin is reliably associated with HbA1c reduction; the insulin effect is plausible but needs more patients.`,
	},
}

var catalog = map[TemplateID]Template{
	ZeroShot: {
		ID:          ZeroShot,
		Instruction: zeroShotInstruction,
		Closing:     "Dataset file: " + Placeholder,
	},
	FewShot: {
		ID:          FewShot,
		Instruction: fewShotInstruction,
		Examples:    fewShotExamples,
		Closing:     "Now analyze the dataset in the same way, covering every medication it reports. Dataset file: " + Placeholder,
	},
	ChainOfThought: {
		ID:          ChainOfThought,
		Instruction: chainOfThoughtInstruction,
		Examples:    chainOfThoughtExamples,
		Closing:     "Now work through Steps 1 to 7 for the dataset. Dataset file: " + Placeholder,
	},
}

// IDs lists the template identifiers in a stable order.
func IDs() []TemplateID {
	return []TemplateID{ZeroShot, FewShot, ChainOfThought}
}

// Lookup returns a copy of the template for id.
func Lookup(id TemplateID) (Template, error) {
	t, ok := catalog[id]
	if !ok {
		return Template{}, errors.NewUnknownTemplateError(string(id))
	}
	t.Examples = append([]Example(nil), t.Examples...)
	return t, nil
}
