// Package codec converts binary device reports to typed records and back.
//
// Vendor protocols describe their wire layouts as ordered field schemas.
// Each Field names one logical value in the report: its element kind,
// endianness, repeat count and optional converter functions. A Schema is
// the ordered list of fields for one report layout.
//
// # Basic Usage
//
// Schemas are static data defined by driver code:
//
//	var profileReport = codec.MustSchema(
//	    codec.Field{Name: "report_id", Kind: codec.KindUint8},
//	    codec.Field{Name: "dpi", Kind: codec.KindUint16, Endian: codec.EndianLittle, Repeat: 5},
//	    codec.Field{Name: "_", Kind: codec.KindUint8, Repeat: 21},
//	    codec.Field{Name: "checksum", Kind: codec.KindUint16, Endian: codec.EndianLittle,
//	        Checksum: additiveSum},
//	)
//
//	rec, err := profileReport.Decode(data)
//	dpi, _ := rec.Uints("dpi")
//
//	out, err := profileReport.Encode(rec)
//
// Decoding consumes bytes strictly in field order. Encoding is the inverse;
// checksum fields are recomputed from the assembled buffer, so a round trip
// reproduces the input exactly wherever the content is unchanged.
//
// # Conventions
//
// The field name "_" marks padding and "?" marks bytes not yet understood.
// Both decode to nothing and encode as zeros. A greedy field consumes all
// remaining bytes and must be the last field of its schema.
package codec
