// Package htan derives Gen3 node schemas from the HTAN JSON-LD data model.
//
// A model node becomes a Gen3 node named after the snake_case singular of
// its label. Its properties are the attributes it depends on plus those
// declaring it as their domain; attributes with a value range become
// enumerations. Component nodes that carry their own attributes are
// emitted as neighbors linked back to the requested node.
package htan
