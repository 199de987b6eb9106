package badger

// Key prefixes for different data types
const (
	indexPrefix  = "idx:"
	recordPrefix = "vec:"
)

// makeIndexKey generates the key holding an index descriptor.
// Format: idx:name
func makeIndexKey(name string) []byte {
	return []byte(indexPrefix + name)
}

// makeRecordPrefix generates the key prefix for all records of an index.
// Format: vec:name:
func makeRecordPrefix(index string) []byte {
	return []byte(recordPrefix + index + ":")
}

// makeRecordKey generates the key for one record.
// Format: vec:name:id
func makeRecordKey(index, id string) []byte {
	return []byte(recordPrefix + index + ":" + id)
}
