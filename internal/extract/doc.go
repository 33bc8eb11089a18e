// Package extract defines the contracts between the identification resolver
// and the two upstream modalities: OCR text extraction and vision captioning.
// Adapters for concrete providers live in the ocr and vlm packages.
package extract
