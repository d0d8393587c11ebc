package ontology

// IRIs in the N-Triples form produced by the rdf decoder.
const (
	rdfType  = "<http://www.w3.org/1999/02/22-rdf-syntax-ns#type>"
	rdfFirst = "<http://www.w3.org/1999/02/22-rdf-syntax-ns#first>"
	rdfRest  = "<http://www.w3.org/1999/02/22-rdf-syntax-ns#rest>"
	rdfNil   = "<http://www.w3.org/1999/02/22-rdf-syntax-ns#nil>"

	// SubClassOf is the predicate used for taxonomy edges.
	SubClassOf = "<http://www.w3.org/2000/01/rdf-schema#subClassOf>"
	// SuperClassOf labels the reverse taxonomy edges of a bidirectional projection.
	SuperClassOf = "<http://www.w3.org/2000/01/rdf-schema#superClassOf>"

	owlClass           = "<http://www.w3.org/2002/07/owl#Class>"
	owlObjectProperty  = "<http://www.w3.org/2002/07/owl#ObjectProperty>"
	owlNamedIndividual = "<http://www.w3.org/2002/07/owl#NamedIndividual>"
	owlEquivalentClass = "<http://www.w3.org/2002/07/owl#equivalentClass>"
	owlOnProperty      = "<http://www.w3.org/2002/07/owl#onProperty>"
	owlSomeValuesFrom  = "<http://www.w3.org/2002/07/owl#someValuesFrom>"
	owlIntersectionOf  = "<http://www.w3.org/2002/07/owl#intersectionOf>"
)

func isNamed(v string) bool {
	return len(v) > 1 && v[0] == '<'
}

func isBlank(v string) bool {
	return len(v) > 2 && v[0] == '_' && v[1] == ':'
}
