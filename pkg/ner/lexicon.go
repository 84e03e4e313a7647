package ner

// Canonical drug names recognised in prescriptions.
var canonicalMedications = []string{
	"Betaloc", "Dorzolamide", "Cimetidine", "Oxprenolol",
	"Paracetamol", "Acetaminophen", "Ibuprofen", "Amoxicillin",
	"Aspirin", "Cetirizine", "Metformin", "Ciprofloxacin",
	"Azithromycin", "Omeprazole", "Atorvastatin", "Lisinopril",
	"Levothyroxine", "Metoprolol", "Amlodipine", "Simvastatin",
	"Losartan", "Gabapentin", "Hydrochlorothiazide", "Prednisone",
	"Montelukast", "Sertraline", "Furosemide", "Pantoprazole",
}

// OCR misreadings mapped to their canonical name.
var defaultAliases = map[string]string{
	"betsloe":      "Betaloc",
	"beteloc":      "Betaloc",
	"betaloc":      "Betaloc",
	"vorzolaridum": "Dorzolamide",
	"dorzolamidum": "Dorzolamide",
	"oxprelel":     "Oxprenolol",
	"oxprelol":     "Oxprenolol",
}

// FrequencyMap expands prescription frequency abbreviations.
var FrequencyMap = map[string]string{
	"OD":  "Once daily",
	"QD":  "Once daily",
	"BD":  "Twice daily",
	"BID": "Twice daily",
	"TID": "Three times daily",
	"QID": "Four times daily",
	"HS":  "At bedtime",
	"QHS": "At bedtime",
	"PRN": "As needed",
	"SOS": "If necessary",
}

// Substrings marking clinic headers, addresses, signatures and the like.
var adminKeywords = []string{
	"dea", "lic", "medical centre", "medical center", "hospital",
	"name", "address", "age", "date", "signature", "sign", "doctor", "dr",
	"refill", "label", "stock", "presc", "usa", "new york", "street", "avenue",
	"road", "ny", "zip", "wtx", "adobe",
}

var symptomLexicon = []string{
	"fever", "headache", "cough", "cold", "sore throat", "runny nose",
	"nausea", "vomiting", "diarrhea", "diarrhoea", "constipation",
	"stomach ache", "abdominal pain", "chest pain", "back pain", "joint pain",
	"body ache", "fatigue", "weakness", "dizziness", "rash", "itching",
	"breathlessness", "shortness of breath", "chills", "sneezing",
	"acidity", "heartburn", "insomnia", "anxiety", "swelling",
}

var dietLexicon = []string{
	"khichdi", "soup", "fruits", "vegetables", "rice", "dal", "curd",
	"yogurt", "milk", "water", "juice", "tea", "coffee", "alcohol",
	"oily", "spicy", "fried", "sugar", "salt",
}
