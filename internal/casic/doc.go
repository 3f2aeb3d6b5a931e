// Package casic encodes the PCASxx configuration sentences understood by
// CASIC-based GPS/BDS/GLONASS receivers and decodes the vendor GPTXT status
// sentence they emit.
//
// Everything here works on in-memory sentences without CR/LF. Opening the
// port, line framing and retries belong to the caller.
package casic
