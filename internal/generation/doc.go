// Package generation turns a request for exercises into validated domain
// exercises by calling a generative text model.
//
// The package owns everything between the model boundary and the store: the
// prompt template, extraction of the JSON array from free-form model output,
// per-candidate schema and domain validation, and the bounded retry wrapper
// used for background calls. The model itself is behind the Model interface;
// the Gemini adapter lives in internal/platform/gemini.
package generation
