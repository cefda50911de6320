package db

// MovieMapping is the canonical mapping of the movie index.
// Ratings and tags are nested so each sub-document is matched on its own.
func MovieMapping() *Mapping {
	return NewMapping().
		Long("movieId").
		Text("title").
		Keyword("genres").
		Nested("ratings", func(b *MappingBuilder) {
			b.Long("userId").Long("movieId").Double("rating")
		}).
		Nested("tags", func(b *MappingBuilder) {
			b.Long("userId").Long("movieId").Keyword("tag")
		}).
		MustBuild()
}
